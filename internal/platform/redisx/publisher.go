package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

// Publisher sends JSON events on one pub/sub channel.
type Publisher struct {
	rdb     goredis.UniversalClient
	channel string
}

func NewPublisher(rdb goredis.UniversalClient, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) Publish(ctx context.Context, payload any) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return apierr.Unavailable(apierr.UpstreamRedis, "publish "+p.channel, err)
	}
	return nil
}
