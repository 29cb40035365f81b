package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// DeliveryHandler processes one delivery job. Returning an error
// requeues the job; the claim step inside the handler keeps redelivery
// from double-sending.
type DeliveryHandler func(job *DeliveryJob) error

// Consumer consumes delivery jobs from the queue
type Consumer struct {
	conn      *Connection
	queueName string
	handler   DeliveryHandler
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewConsumer creates a consumer and declares the durable queue
func NewConsumer(conn *Connection, queueName string, handler DeliveryHandler) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
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

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start begins consuming with manual acknowledgement and a prefetch of
// one, so a worker holds a single in-flight job at a time.
func (c *Consumer) Start() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				log.Println("Consumer stopping...")
				return
			case d, ok := <-msgs:
				if !ok {
					log.Println("Delivery channel closed")
					return
				}

				var job DeliveryJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					// Malformed jobs can never succeed, drop them
					log.Printf("Dropping unparseable delivery job: %v", err)
					d.Nack(false, false)
					continue
				}

				if err := c.handler(&job); err != nil {
					log.Printf("Error processing delivery job for message %d: %v", job.MessageID, err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
				}
			}
		}
	}()

	log.Printf("Consumer started, listening on queue: %s", c.queueName)
	return nil
}

// Stop stops consuming gracefully, waiting for the in-flight job
func (c *Consumer) Stop() error {
	close(c.stopChan)
	<-c.doneChan

	log.Println("Consumer stopped")
	return nil
}
