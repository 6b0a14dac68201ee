package ratelimit

import (
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// New returns the strategy named by kind: "sliding" (default) or "fixed".
func New(kind string, client *redis.Client, prefix string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sliding":
		return SlidingWindow{Client: client, Prefix: prefix}, nil
	case "fixed":
		return NewFixedWindow(client, prefix)
	default:
		return nil, fmt.Errorf("ratelimit: unknown strategy %q", kind)
	}
}
