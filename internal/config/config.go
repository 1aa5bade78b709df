package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

const (
	DefaultServerAddr      = ":8080"
	DefaultPprofAddr       = "localhost:6060"
	DefaultCacheTTL        = 7 * 24 * time.Hour
	DefaultAnonymousTier   = "free"
	DefaultDedupPolicy     = "mint"
	DefaultMaxCodeAttempts = 10
	DefaultLogLevel        = "info"

	// AnonymousUnlimited значение ANONYMOUS_TIER, при котором анонимные запросы не лимитируются
	AnonymousUnlimited = "none"
)

// Config содержит конфигурацию приложения.
//
// Порядок источников: значения по умолчанию, JSON-файл (-c/-config или CONFIG),
// .env, переменные окружения, флаги командной строки.
type Config struct {
	ServerAddr      string        `json:"server_address" env:"SERVER_ADDRESS"`
	FilePath        string        `json:"file_storage_path" env:"FILE_STORAGE_PATH"`
	DBurl           string        `json:"database_dsn" env:"DATABASE_DSN"`
	RedisAddr       string        `json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string        `json:"-" env:"REDIS_PASSWORD"`
	CacheTTL        time.Duration `json:"cache_ttl" env:"CACHE_TTL"`
	RateLimitsFile  string        `json:"rate_limits_file" env:"RATE_LIMITS_FILE"`
	OwnersFile      string        `json:"owners_file" env:"OWNERS_FILE"`
	AnonymousTier   string        `json:"anonymous_tier" env:"ANONYMOUS_TIER"`
	DedupPolicy     string        `json:"dedup_policy" env:"DEDUP_POLICY"`
	MaxCodeAttempts int           `json:"max_code_attempts" env:"MAX_CODE_ATTEMPTS"`
	BlacklistFile   string        `json:"blacklist_file" env:"BLACKLIST_FILE"`
	AuditFile       string        `json:"audit_file" env:"AUDIT_FILE"`
	AuditURL        string        `json:"audit_url" env:"AUDIT_URL"`
	TrustedSubnet   string        `json:"trusted_subnet" env:"TRUSTED_SUBNET"`
	PprofAddr       string        `json:"pprof_address" env:"PPROF_ADDRESS"`
	LogLevel        string        `json:"log_level" env:"LOG_LEVEL"`
	RequestLog      string        `json:"request_log" env:"REQUEST_LOG"`
	EnableHTTPS     bool          `json:"enable_https" env:"ENABLE_HTTPS"`
	CertFile        string        `json:"cert_file" env:"CERT_FILE"`
	KeyFile         string        `json:"key_file" env:"KEY_FILE"`
}

// NewConfig собирает конфигурацию процесса и завершает его при ошибке
func NewConfig() *Config {
	c, err := Load(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	return c
}

// Load собирает конфигурацию из всех источников. args: аргументы без имени программы.
func Load(args []string) (*Config, error) {
	c := &Config{
		ServerAddr:      DefaultServerAddr,
		PprofAddr:       DefaultPprofAddr,
		CacheTTL:        DefaultCacheTTL,
		AnonymousTier:   DefaultAnonymousTier,
		DedupPolicy:     DefaultDedupPolicy,
		MaxCodeAttempts: DefaultMaxCodeAttempts,
		LogLevel:        DefaultLogLevel,
	}

	if err := c.loadFromFile(getConfigPath(args)); err != nil {
		return nil, err
	}

	// .env не обязателен
	_ = godotenv.Load()

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("переменные окружения: %w", err)
	}
	if err := c.getArgsFromCli(args); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func getConfigPath(args []string) string {
	for i, arg := range args {
		if (arg == "-c" || arg == "-config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("CONFIG")
}

func (c *Config) loadFromFile(filename string) error {
	if filename == "" {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("чтение файла конфигурации: %w", err)
	}
	// cache_ttl в файле задаётся строкой ("168h") так же, как в env и флаге
	type plain Config
	aux := struct {
		*plain
		CacheTTL json.RawMessage `json:"cache_ttl"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("разбор файла конфигурации: %w", err)
	}
	if len(aux.CacheTTL) > 0 {
		ttl, err := parseDuration(aux.CacheTTL)
		if err != nil {
			return fmt.Errorf("разбор файла конфигурации: cache_ttl: %w", err)
		}
		c.CacheTTL = ttl
	}
	return nil
}

// parseDuration строка в формате time.ParseDuration или число наносекунд
func parseDuration(raw json.RawMessage) (time.Duration, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.ParseDuration(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("ожидается строка вида \"168h\": %s", raw)
	}
	return time.Duration(n), nil
}

func (c *Config) getArgsFromCli(args []string) error {
	fs := flag.NewFlagSet("shortlink", flag.ContinueOnError)
	fs.StringVar(&c.ServerAddr, "a", c.ServerAddr, "server host")
	fs.StringVar(&c.FilePath, "f", c.FilePath, "file storage path")
	fs.StringVar(&c.DBurl, "d", c.DBurl, "database DSN")
	fs.StringVar(&c.RedisAddr, "r", c.RedisAddr, "redis address")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "redirect cache TTL")
	fs.StringVar(&c.RateLimitsFile, "limits", c.RateLimitsFile, "rate limits YAML file")
	fs.StringVar(&c.OwnersFile, "owners", c.OwnersFile, "owners seed YAML file")
	fs.StringVar(&c.AnonymousTier, "anonymous-tier", c.AnonymousTier, "rate limit tier for anonymous callers, none to disable")
	fs.StringVar(&c.DedupPolicy, "dedup", c.DedupPolicy, "dedup policy: mint or reuse")
	fs.IntVar(&c.MaxCodeAttempts, "code-attempts", c.MaxCodeAttempts, "max random code attempts")
	fs.StringVar(&c.BlacklistFile, "blacklist", c.BlacklistFile, "API key blacklist JSON file")
	fs.StringVar(&c.AuditFile, "audit-file", c.AuditFile, "audit file path")
	fs.StringVar(&c.AuditURL, "audit-url", c.AuditURL, "audit server URL")
	fs.StringVar(&c.TrustedSubnet, "t", c.TrustedSubnet, "trusted subnet CIDR")
	fs.StringVar(&c.PprofAddr, "pprof", c.PprofAddr, "pprof server address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.RequestLog, "request-log", c.RequestLog, "extra log output path")
	fs.BoolVar(&c.EnableHTTPS, "s", c.EnableHTTPS, "enable HTTPS")
	fs.String("c", "", "config file path")
	fs.String("config", "", "config file path")
	return fs.Parse(args)
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	switch c.AnonymousTier {
	case "free", "hobby", "enterprise", AnonymousUnlimited:
	default:
		return fmt.Errorf("неизвестный ANONYMOUS_TIER %q", c.AnonymousTier)
	}
	switch c.DedupPolicy {
	case "mint", "reuse":
	default:
		return fmt.Errorf("неизвестный DEDUP_POLICY %q", c.DedupPolicy)
	}
	if c.MaxCodeAttempts <= 0 {
		return fmt.Errorf("MAX_CODE_ATTEMPTS должен быть положительным")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL должен быть положительным")
	}
	if c.EnableHTTPS && (c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("для HTTPS нужны CERT_FILE и KEY_FILE")
	}
	return nil
}

func (c Config) GetAddress() string {
	return c.ServerAddr
}

func (c Config) GetFilePath() string {
	return c.FilePath
}

func (c Config) GetAuditFile() string {
	return c.AuditFile
}

func (c Config) GetAuditURL() string {
	return c.AuditURL
}
