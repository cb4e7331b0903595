package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// dialPipelineQueue connects to the broker and returns a channel on which the
// durable pipeline queue is declared.
func dialPipelineQueue(url string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= MaxConnectRetry; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		slog.Warn("rabbitmq unavailable", "attempt", attempt, "max_attempts", MaxConnectRetry, "error", err)
		if attempt < MaxConnectRetry {
			time.Sleep(RetryDelay)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("unable to reach rabbitmq after %d attempts: %w", MaxConnectRetry, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := channel.QueueDeclare(PipelineQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", PipelineQueue, err)
	}

	return conn, channel, nil
}

// sleepUntil waits for d and reports false if done was closed first.
func sleepUntil(done <-chan struct{}, d time.Duration) bool {
	select {
	case <-done:
		return false
	case <-time.After(d):
		return true
	}
}

// RabbitMQPublisher publishes pipeline runs as persistent messages and waits
// for the broker to confirm each one.
type RabbitMQPublisher struct {
	url string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closeOnce sync.Once
	closed    chan struct{}
}

func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: url, closed: make(chan struct{})}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) open() error {
	conn, channel, err := dialPipelineQueue(p.url)
	if err != nil {
		return err
	}

	if err := channel.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.conn, p.channel = conn, channel
	go p.watch(channel.NotifyClose(make(chan *amqp.Error, 1)))

	slog.Info("rabbitmq publisher ready", "queue", PipelineQueue)
	return nil
}

// watch reopens the channel after the broker drops it. A nil error means the
// connection was closed on purpose.
func (p *RabbitMQPublisher) watch(notify <-chan *amqp.Error) {
	amqpErr, ok := <-notify
	if !ok || amqpErr == nil {
		return
	}

	slog.Warn("rabbitmq publisher channel lost, reconnecting", "error", amqpErr)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.conn, p.channel = nil, nil
	for {
		if err := p.open(); err == nil {
			return
		}
		if !sleepUntil(p.closed, RetryDelay*10) {
			return
		}
	}
}

func (p *RabbitMQPublisher) PublishPipelineTask(ctx context.Context, payload PipelineTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline task: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, "", PipelineQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    payload.RunId.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish run %s: %w", payload.RunId, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("no confirmation for run %s: %w", payload.RunId, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected run %s", payload.RunId)
	}

	slog.Info("published pipeline task", "run_id", payload.RunId)
	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)

		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				slog.Error("error closing rabbitmq publisher", "error", err)
			}
		}
	})
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

func (t *RabbitMQTask) Nack() error {
	// Failed runs are recorded in the database, so they are not requeued.
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

// RabbitMQReceiver delivers pipeline tasks one at a time. Training runs are
// long, so the broker hands each worker a single unacked run.
type RabbitMQReceiver struct {
	url   string
	tasks chan Task

	stopOnce sync.Once
	stop     chan struct{}
}

func NewRabbitMQReceiver(url string) (*RabbitMQReceiver, error) {
	r := &RabbitMQReceiver{
		url:   url,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}

	if err := r.subscribe(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQReceiver) subscribe() error {
	conn, channel, err := dialPipelineQueue(r.url)
	if err != nil {
		return err
	}

	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := channel.Consume(PipelineQueue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to consume from %s: %w", PipelineQueue, err)
	}

	go r.forward(deliveries)
	go r.watch(conn, channel.NotifyClose(make(chan *amqp.Error, 1)))

	slog.Info("rabbitmq receiver subscribed", "queue", PipelineQueue)
	return nil
}

func (r *RabbitMQReceiver) forward(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		select {
		case r.tasks <- &RabbitMQTask{d: d}:
		case <-r.stop:
			// Unacked deliveries go back to the queue when the connection closes.
			return
		}
	}
}

func (r *RabbitMQReceiver) watch(conn *amqp.Connection, notify <-chan *amqp.Error) {
	select {
	case amqpErr, ok := <-notify:
		if !ok || amqpErr == nil {
			return
		}

		slog.Warn("rabbitmq receiver channel lost, resubscribing", "error", amqpErr)
		for {
			if err := r.subscribe(); err == nil {
				return
			}
			if !sleepUntil(r.stop, RetryDelay*10) {
				return
			}
		}

	case <-r.stop:
		if err := conn.Close(); err != nil {
			slog.Error("error closing rabbitmq receiver", "error", err)
		}
	}
}

func (r *RabbitMQReceiver) Tasks() <-chan Task {
	return r.tasks
}

func (r *RabbitMQReceiver) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
