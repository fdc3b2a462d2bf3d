package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter used to keep a single chatty user
// from flooding the update workers. Windows are tracked per user and per
// update kind under rate_limit:<tgID>:<kind>.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow increments the window counter for key and reports whether the caller
// is still under limit. The first hit in a window arms the expiry.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

// UserUpdateKey builds the counter key for one user and one update kind
// ("msg" or "cb").
func UserUpdateKey(tgID int64, kind string) string {
	return fmt.Sprintf("rate_limit:%d:%s", tgID, kind)
}
