package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our owner value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis stores claims as keys with a TTL, shared by every host that can
// reach the server.
type Redis struct {
	client *redis.Client
	prefix string
	owner  string
	ttl    time.Duration
}

// NewRedis connects to the server at redisURL. A bare host:port is accepted
// as well as a redis:// URL.
func NewRedis(ctx context.Context, redisURL, prefix, owner string, ttl time.Duration) (*Redis, error) {
	if owner == "" {
		return nil, errors.New("claim owner is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix, owner: owner, ttl: ttl}, nil
}

func (r *Redis) key(messageID string) string {
	return r.prefix + messageID
}

// Claim sets the message key if it does not exist.
func (r *Redis) Claim(ctx context.Context, messageID string) (bool, error) {
	key := r.key(messageID)

	ok, err := r.client.SetNX(ctx, key, r.owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim message %s: %w", messageID, err)
	}
	if ok {
		return true, nil
	}

	holder, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired between the two calls; try once more.
		return r.client.SetNX(ctx, key, r.owner, r.ttl).Result()
	case err != nil:
		return false, fmt.Errorf("claim message %s: %w", messageID, err)
	}
	return holder == r.owner, nil
}

// Release deletes the message key if this owner holds it.
func (r *Redis) Release(ctx context.Context, messageID string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(messageID)}, r.owner).Err(); err != nil {
		return fmt.Errorf("release message %s: %w", messageID, err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
