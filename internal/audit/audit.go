package audit

import (
	"errors"
	"sync"
	"time"
)

// Action тип действия аудита
type Action string

const (
	ActionShorten Action = "shorten"
	ActionFollow  Action = "follow"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// Event структура события аудита
type Event struct {
	Timestamp int64  `json:"ts"`
	Action    Action `json:"action"`
	UserID    string `json:"user_id,omitempty"`
	Code      string `json:"code"`
	URL       string `json:"url,omitempty"`
}

// NewEvent создаёт новое событие аудита. ownerID == nil для анонимных действий.
func NewEvent(action Action, ownerID *string, code, url string) Event {
	e := Event{
		Timestamp: time.Now().Unix(),
		Action:    action,
		Code:      code,
		URL:       url,
	}
	if ownerID != nil {
		e.UserID = *ownerID
	}
	return e
}

// Observer получатель событий. Свои ошибки наблюдатель логирует сам.
type Observer interface {
	Notify(event Event)
	Close() error
}

type Publisher struct {
	mu          sync.Mutex
	subscribers []Observer
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers = append(p.subscribers, o)
}

func (p *Publisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subscribers {
		s.Notify(event)
	}
}

// Len число наблюдателей
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Close закрывает всех наблюдателей, даже если кто-то из них вернул ошибку
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, obs := range p.subscribers {
		if err := obs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.subscribers = nil
	return errors.Join(errs...)
}
