package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// Channel — часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishMessage сериализует message в JSON и публикует его в exchange с ключом routingKey.
func PublishMessage(ch Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует доменные события коучинга в обменник.
// Канал amqp не потокобезопасен, поэтому публикации сериализуются мьютексом.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// PublishInvite публикует приглашение автосозданному пользователю.
func (p *Publisher) PublishInvite(ctx context.Context, event models.InviteEvent) error {
	return p.publish(ctx, RoutingKeyInvite, event)
}

// PublishStatusChanged публикует смену статуса клиента.
func (p *Publisher) PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error {
	return p.publish(ctx, RoutingKeyStatus, event)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	const op = "rabbitmq.Publisher.publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishMessage(p.ch, p.exchange, key, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NopPublisher отбрасывает события. Используется, когда брокер не настроен.
type NopPublisher struct{}

// PublishInvite ничего не делает.
func (NopPublisher) PublishInvite(context.Context, models.InviteEvent) error { return nil }

// PublishStatusChanged ничего не делает.
func (NopPublisher) PublishStatusChanged(context.Context, models.StatusChangedEvent) error {
	return nil
}
