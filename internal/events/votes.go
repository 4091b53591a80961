// Package events fans vote count changes out to every API instance over
// Redis Pub/Sub so open gallery streams can update live.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const VoteChannel = "showcase:events:votes"

type VoteEvent struct {
	ProjectID string    `json:"project_id"`
	VoteCount int       `json:"vote_count"`
	At        time.Time `json:"at"`
}

// Publisher is safe to use with a nil client; publishing is then a no-op.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishVote(ctx context.Context, ev VoteEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, VoteChannel, data).Err(); err != nil {
		return fmt.Errorf("publish vote event: %w", err)
	}
	return nil
}

// Subscribe delivers vote events until ctx is cancelled. The returned channel
// is closed when the subscription ends.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan VoteEvent, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("vote events unavailable: no redis client")
	}

	sub := p.client.Subscribe(ctx, VoteChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", VoteChannel, err)
	}

	out := make(chan VoteEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev VoteEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed vote event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
