package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange used when none is configured.
const DefaultExchange = "ledger_events"

// AMQPNotifier publishes messages to a durable topic exchange, routed by message kind.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(rawURL, exchange string) (*AMQPNotifier, error) {
	cleanURL, err := validateAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	n := &AMQPNotifier{conn: conn, exchange: exchange}
	if err := n.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return n, nil
}

// Send publishes the message with its kind as the routing key. A failed publish
// reopens the channel once and retries.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    message.Reference,
		Timestamp:    time.Now(),
		Body:         body,
	}
	err = n.channel.PublishWithContext(ctx, n.exchange, message.Kind, false, false, publishing)
	if err == nil {
		return nil
	}
	if reopenErr := n.openChannel(); reopenErr != nil {
		return fmt.Errorf("publish notification: %w", errors.Join(err, reopenErr))
	}
	if err := n.channel.PublishWithContext(ctx, n.exchange, message.Kind, false, false, publishing); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *AMQPNotifier) openChannel() error {
	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", n.exchange, err)
	}
	if n.channel != nil {
		n.channel.Close()
	}
	n.channel = ch
	return nil
}

func validateAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url must use amqp:// or amqps://")
	}
	return clean, nil
}
