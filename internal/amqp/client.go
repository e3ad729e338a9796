// Package amqp publishes and consumes report.generated events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"occupancy/internal/metrics"
)

const (
	routingKeyReportGenerated = "report.generated"

	maxDialAttempts = 3
	maxFailures     = 5
	openTimeout     = 30 * time.Second
	publishTimeout  = 5 * time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	breaker *gobreaker.CircuitBreaker[struct{}]
	publish func(ctx context.Context, msg amqp091.Publishing) error
}

// NewClient connects, declares the exchange and queue, and binds them.
// Dialing is retried with exponential backoff.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := newClient(url, exchangeName, queueName)

	var err error
	for attempt := 0; attempt < maxDialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(exponentialBackoff(attempt - 1))
		}
		if err = c.connect(); err == nil {
			return c, nil
		}
		slog.Warn("AMQP connection attempt failed", "component", "amqp", "attempt", attempt+1, "error", err)
	}
	return nil, err
}

func newClient(url, exchangeName, queueName string) *Client {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "amqp-publish",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("AMQP circuit breaker state changed", "component", "amqp", "from", from.String(), "to", to.String())
		},
	})
	c.publish = c.publishOnChannel
	return c
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, routingKeyReportGenerated, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// currentChannel returns an open channel, reconnecting when the previous one was lost.
func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

func (c *Client) publishOnChannel(ctx context.Context, msg amqp091.Publishing) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, c.exchangeName, routingKeyReportGenerated, false, false, msg)
	if isConnectionError(err) {
		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()
	}
	return err
}

// PublishReportGenerated publishes msg as a persistent JSON message. While the
// breaker is open publishing fails fast with gobreaker.ErrOpenState.
func (c *Client) PublishReportGenerated(ctx context.Context, msg *ReportGeneratedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.publish(ctx, amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
	})
	if err != nil {
		metrics.ReportEventsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish message: %w", err)
	}

	metrics.ReportEventsTotal.WithLabelValues("published").Inc()
	slog.DebugContext(ctx, "Published report generated message",
		"component", "amqp",
		"event_id", msg.ID,
		"location", msg.Location,
		"exchange", c.exchangeName)
	return nil
}

// ReportHandler processes one consumed message. Returning an error requeues it.
type ReportHandler func(ctx context.Context, msg *ReportGeneratedMessage) error

// ConsumeReportGenerated consumes messages with manual acknowledgement until
// ctx is cancelled or the delivery channel closes.
func (c *Client) ConsumeReportGenerated(ctx context.Context, handler ReportHandler) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming report messages", "component", "amqp", "queue", c.queueName)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "component", "amqp", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			outcome := handleDelivery(ctx, delivery, handler)
			metrics.ReportEventsTotal.WithLabelValues(outcome).Inc()
		}
	}
}

// handleDelivery acks processed messages, drops malformed ones and requeues
// those the handler failed on. It returns the outcome label.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler ReportHandler) string {
	msg, err := ReportGeneratedMessageFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode message", "component", "amqp", "error", err)
		_ = d.Nack(false, false)
		return "rejected"
	}
	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message", "component", "amqp", "event_id", msg.ID, "error", err)
		_ = d.Nack(false, true)
		return "requeued"
	}
	_ = d.Ack(false)
	return "consumed"
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	return time.Duration(1<<attempt) * time.Second
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
