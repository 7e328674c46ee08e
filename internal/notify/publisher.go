package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher pushes events onto durable RabbitMQ queues. A Publisher built
// with an empty URL is a no-op, which keeps tests and broker-less
// deployments working without stubs.
type Publisher struct {
	url string
}

// NewPublisher creates a publisher for the given AMQP URL. An empty URL
// disables publishing.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// BidAccepted publishes a bid.accepted event. Never call this before the
// bid transaction has committed.
func (p *Publisher) BidAccepted(ctx context.Context, event BidAcceptedEvent) {
	p.publish(ctx, QueueBidAccepted, event)
}

// AuctionSettled publishes an auction.settled event after settlement commit.
func (p *Publisher) AuctionSettled(ctx context.Context, event AuctionSettledEvent) {
	p.publish(ctx, QueueAuctionSettled, event)
}

func (p *Publisher) publish(ctx context.Context, queue string, event interface{}) {
	if p == nil || p.url == "" {
		return
	}

	logger := log.With().Str("component", "notify").Str("queue", queue).Logger()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		logger.Error().Err(err).Msg("broker dial failed, event dropped")
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error().Err(err).Msg("channel open failed, event dropped")
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		logger.Error().Err(err).Msg("queue declare failed, event dropped")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("event marshal failed")
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		logger.Error().Err(err).Msg("publish failed, event dropped")
		return
	}

	logger.Debug().Msg("event published")
}
