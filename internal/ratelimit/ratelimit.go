// Package ratelimit лимиты запросов с фиксированным окном.
//
// Для /shorten и /redirect лимит берётся по уровню владельца, для остальных
// маршрутов действует общий лимит по IP. Счётчики хранятся в Counter:
// в памяти процесса (memory) или в Redis (redislimit).
package ratelimit

//go:generate mockgen -source=ratelimit.go -destination=mocks/mock_counter.go -package=mocks

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	EndpointShorten  = "/shorten"
	EndpointRedirect = "/redirect"
)

// Rule не больше Max запросов за Window
type Rule struct {
	Max    int64         `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

func (r Rule) valid() bool {
	return r.Max > 0 && r.Window > 0
}

// Limits таблица лимитов
type Limits struct {
	Tiers map[model.Tier]map[string]Rule `yaml:"tiers"`
	IP    Rule                           `yaml:"ip"`
}

// DefaultLimits лимиты по умолчанию
func DefaultLimits() Limits {
	paid := map[string]Rule{
		EndpointShorten:  {Max: 10, Window: time.Second},
		EndpointRedirect: {Max: 50, Window: time.Second},
	}
	return Limits{
		Tiers: map[model.Tier]map[string]Rule{
			model.TierFree: {
				EndpointShorten:  {Max: 5, Window: time.Minute},
				EndpointRedirect: {Max: 5, Window: time.Minute},
			},
			model.TierHobby:      paid,
			model.TierEnterprise: paid,
		},
		IP: Rule{Max: 100, Window: time.Minute},
	}
}

// LoadLimits читает YAML поверх лимитов по умолчанию. Пустой путь: только умолчания.
//
//	tiers:
//	  free:
//	    /shorten: {max: 5, window: 1m}
//	ip: {max: 100, window: 1m}
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("чтение файла лимитов: %w", err)
	}

	var override Limits
	if err := yaml.Unmarshal(data, &override); err != nil {
		return limits, fmt.Errorf("разбор файла лимитов: %w", err)
	}

	for tier, rules := range override.Tiers {
		if !tier.Valid() {
			return limits, fmt.Errorf("неизвестный уровень %q", tier)
		}
		merged := make(map[string]Rule, len(limits.Tiers[tier])+len(rules))
		for endpoint, rule := range limits.Tiers[tier] {
			merged[endpoint] = rule
		}
		for endpoint, rule := range rules {
			if !rule.valid() {
				return limits, fmt.Errorf("некорректный лимит %s %s", tier, endpoint)
			}
			merged[endpoint] = rule
		}
		limits.Tiers[tier] = merged
	}
	if override.IP != (Rule{}) {
		if !override.IP.valid() {
			return limits, fmt.Errorf("некорректный лимит по IP")
		}
		limits.IP = override.IP
	}
	return limits, nil
}

// Counter счётчик фиксированного окна: первый Hit по ключу ставит 1 и срок window,
// следующие увеличивают значение до истечения срока.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

// Decision результат проверки, нужен для заголовков X-RateLimit-*
type Decision struct {
	Limit     int64
	Remaining int64
}

// Limiter применяет таблицу лимитов к счётчику
type Limiter struct {
	counter Counter
	limits  Limits
}

func New(counter Counter, limits Limits) *Limiter {
	return &Limiter{counter: counter, limits: limits}
}

// Rule лимит уровня на эндпоинт
func (l *Limiter) Rule(tier model.Tier, endpoint string) (Rule, bool) {
	rule, ok := l.limits.Tiers[tier][endpoint]
	return rule, ok && rule.valid()
}

// Tiered для эндпоинта есть лимит хотя бы у одного уровня
func (l *Limiter) Tiered(endpoint string) bool {
	for _, rules := range l.limits.Tiers {
		if _, ok := rules[endpoint]; ok {
			return true
		}
	}
	return false
}

// Allow учитывает запрос subject к endpoint по лимиту уровня.
// Превышение: model.ErrRateLimited, эндпоинт без лимита пропускается.
func (l *Limiter) Allow(ctx context.Context, subject string, tier model.Tier, endpoint string) (Decision, error) {
	rule, ok := l.Rule(tier, endpoint)
	if !ok {
		return Decision{}, nil
	}
	return l.hit(ctx, subject+":"+endpoint, rule)
}

// AllowIP общий лимит по адресу клиента
func (l *Limiter) AllowIP(ctx context.Context, ip string) (Decision, error) {
	if !l.limits.IP.valid() {
		return Decision{}, nil
	}
	return l.hit(ctx, "ip:"+ip, l.limits.IP)
}

func (l *Limiter) hit(ctx context.Context, key string, rule Rule) (Decision, error) {
	count, err := l.counter.Hit(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("счётчик лимита: %w", err)
	}

	d := Decision{Limit: rule.Max, Remaining: max(rule.Max-count, 0)}
	if count > rule.Max {
		return d, model.ErrRateLimited
	}
	return d, nil
}

func (l *Limiter) Close() error {
	return l.counter.Close()
}
