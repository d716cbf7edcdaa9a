package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Topics
const (
	TopicFlagRejected = "moderation.flag.rejected"
)

// Event 모더레이션 이벤트
type Event struct {
	ID        string      `json:"id"`
	Topic     string      `json:"topic"`
	Source    string      `json:"source"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Handler 이벤트 핸들러 함수
type Handler func(event Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus in-process publish/subscribe. Handler panics are recovered and logged
// so a faulty subscriber never breaks the publisher.
type Bus struct {
	subscribers map[string][]subscription // topic -> handlers
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      zerolog.Logger
}

// NewBus 생성자
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]subscription),
		logger:      logger,
	}
}

// Subscribe 토픽 구독
func (b *Bus) Subscribe(name, topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{
		name:    name,
		handler: handler,
	})
	b.logger.Debug().Str("subscriber", name).Str("topic", topic).Msg("subscribed")
}

// Unsubscribe removes every subscription registered under name
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		var remaining []subscription
		for _, s := range subs {
			if s.name != name {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
}

// Publish 이벤트 발행 (동기: 모든 핸들러 순차 실행)
func (b *Bus) Publish(source, topic string, payload interface{}) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().
						Str("source", source).
						Str("topic", topic).
						Str("subscriber", s.name).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			s.handler(event)
		}()
	}
}

// PublishAsync 이벤트 비동기 발행 (fire-and-forget)
func (b *Bus) PublishAsync(source, topic string, payload interface{}) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Publish(source, topic, payload)
	}()
}

// Wait blocks until every async publish has been delivered
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Subscriptions 구독 현황 조회
func (b *Bus) Subscriptions() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string][]string)
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			result[topic] = append(result[topic], s.name)
		}
	}
	return result
}
