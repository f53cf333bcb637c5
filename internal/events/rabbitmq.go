package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"doacao/internal/infra"
	"doacao/internal/metrics"
)

const confirmTimeout = 10 * time.Second

var ErrBrokerClosed = errors.New("events: broker connection is closed")

// RabbitPublisher publishes to a durable topic exchange with publisher
// confirms enabled.
type RabbitPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	logger     *infra.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	cancel     context.CancelFunc
}

func NewRabbitPublisher(url, exchange string, logger *infra.Logger) (*RabbitPublisher, error) {
	logger = infra.OrDiscard(logger)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: enable confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &RabbitPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		logger:     logger,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		cancel:     cancel,
	}
	p.healthy.Store(true)
	metrics.BrokerHealthy.Set(1)

	conn.NotifyClose(p.connClosed)
	ch.NotifyClose(p.chanClosed)

	go p.watch(ctx)

	logger.Info().Str("exchange", exchange).Msg("events: connected to broker")
	return p, nil
}

// watch marks the publisher down when the broker drops the connection or
// channel. amqp closes both notify channels without a reason on Close.
func (p *RabbitPublisher) watch(ctx context.Context) {
	var (
		what string
		err  *amqp.Error
	)
	select {
	case err = <-p.connClosed:
		what = "connection"
	case err = <-p.chanClosed:
		what = "channel"
	case <-ctx.Done():
		return
	}
	if err == nil || ctx.Err() != nil {
		return
	}
	p.markDown(what, err)
}

func (p *RabbitPublisher) markDown(what string, err *amqp.Error) {
	p.healthy.Store(false)
	metrics.BrokerHealthy.Set(0)
	p.logger.Warn().Str("closed", what).Interface("reason", err).Msg("events: broker closed")
}

// Publish blocks until the broker acknowledges the message.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, msg Message) error {
	if !p.IsHealthy() {
		return ErrBrokerClosed
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}

	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		Headers:      amqp.Table{"event_id": msg.EventID},
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", routingKey, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("events: broker nacked %s", routingKey)
		}
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("events: confirm timeout for %s", routingKey)
	}
}

func (p *RabbitPublisher) IsHealthy() bool {
	return p.healthy.Load()
}

func (p *RabbitPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
		metrics.BrokerHealthy.Set(0)
	})
	return nil
}

// Connect returns a broker publisher when url is set and falls back to the
// log publisher otherwise or when the broker cannot be reached.
func Connect(url, exchange string, logger *infra.Logger) Publisher {
	logger = infra.OrDiscard(logger)
	if url == "" {
		return NewLogPublisher(logger)
	}
	p, err := NewRabbitPublisher(url, exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("events: broker unavailable, logging events instead")
		return NewLogPublisher(logger)
	}
	return p
}
