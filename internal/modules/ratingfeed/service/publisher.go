package ratingfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Update is the message sent to live rating subscribers.
type Update struct {
	TitleID uint     `json:"title_id"`
	Rating  *float64 `json:"rating"`
}

// Channel is the Redis pub/sub channel of one title.
func Channel(titleID uint) string {
	return fmt.Sprintf("title_rating:%d", titleID)
}

// Publisher fans rating changes out over Redis. A nil client disables it.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.rdb != nil
}

func (p *Publisher) OnRatingChanged(ctx context.Context, titleID uint, rating *float64) error {
	if !p.Enabled() {
		return nil
	}

	payload, err := json.Marshal(Update{TitleID: titleID, Rating: rating})
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel(titleID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish rating update: %w", err)
	}
	return nil
}

// Subscribe opens a subscription to a title's channel and waits for Redis to confirm it.
func (p *Publisher) Subscribe(ctx context.Context, titleID uint) (*redis.PubSub, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("rating feed is disabled")
	}

	pubsub := p.rdb.Subscribe(ctx, Channel(titleID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(titleID), err)
	}
	return pubsub, nil
}
