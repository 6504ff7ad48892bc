package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ChatCooldowns implements domain.ChatCooldowns on redis keys with TTL.
// Expiry is handled entirely by redis, so cooldowns survive restarts and are
// shared across instances.
type ChatCooldowns struct {
	rdb *goredis.Client
}

func NewChatCooldowns(rdb *goredis.Client) *ChatCooldowns {
	return &ChatCooldowns{rdb: rdb}
}

func (c *ChatCooldowns) Active(ctx context.Context, communityID, memberID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cooldownKey(communityID, memberID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check chat cooldown: %w", err)
	}
	return n > 0, nil
}

func (c *ChatCooldowns) Arm(ctx context.Context, communityID, memberID string, d time.Duration) error {
	if err := c.rdb.Set(ctx, cooldownKey(communityID, memberID), "1", d).Err(); err != nil {
		return fmt.Errorf("failed to arm chat cooldown: %w", err)
	}
	return nil
}

func cooldownKey(communityID, memberID string) string {
	return "cooldown:chat:" + communityID + ":" + memberID
}
