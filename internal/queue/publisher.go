package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryJob is one unit of delivery work on the queue. The worker
// re-reads the message row before acting, so a job only carries the
// identifiers needed to find it.
type DeliveryJob struct {
	MessageID int    `json:"message_id"`
	OrgID     string `json:"org_id"`
}

// Publisher publishes delivery jobs to the queue
type Publisher struct {
	conn      *Connection
	queueName string
}

// NewPublisher creates a publisher and declares the durable queue
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishDelivery enqueues a delivery job for a message. Jobs are
// persistent so they survive a broker restart.
func (p *Publisher) PublishDelivery(messageID int, orgID string) error {
	job := DeliveryJob{
		MessageID: messageID,
		OrgID:     orgID,
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery job: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.Publish(
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish delivery job: %w", err)
	}

	return nil
}

// Close closes the publisher (the connection is managed externally)
func (p *Publisher) Close() error {
	return nil
}
