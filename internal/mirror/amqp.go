package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher is satisfied by *amqp091.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPMirror publishes availability events to a fanout exchange.
type AMQPMirror struct {
	pub      Publisher
	exchange string
	timeout  time.Duration
}

func NewAMQPMirror(pub Publisher, exchange string) *AMQPMirror {
	return &AMQPMirror{pub: pub, exchange: exchange, timeout: 2 * time.Second}
}

// DialAMQP connects, opens a channel and declares exchange as a durable
// fanout. Closing the connection also closes the channel.
func DialAMQP(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func (a *AMQPMirror) Update(ctx context.Context, driverID int64, s State) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	body, err := json.Marshal(Event{DriverID: driverID, State: s})
	if err != nil {
		return err
	}
	return a.pub.PublishWithContext(ctx, a.exchange, strconv.FormatInt(driverID, 10), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.UnixMilli(s.UpdatedAt),
		Body:         body,
	})
}
