package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "shopdesk:otp:"

// RedisOTPStore keeps each code in a hash (code, expiresAt, attempts) whose
// key expires with the code.
type RedisOTPStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisOTPStore(addr string, password string, db int) *RedisOTPStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisOTPStore{client: client, now: time.Now}
}

func (c *RedisOTPStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOTPStore) Close() error {
	return c.client.Close()
}

func (c *RedisOTPStore) Save(ctx context.Context, email string, code string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = OTPTTL
	}
	key := otpKeyPrefix + otpKey(email)
	expiresAt := c.now().Add(ttl).UnixMilli()
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", code, "expiresAt", expiresAt, "attempts", 0)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (c *RedisOTPStore) Verify(ctx context.Context, email string, code string) error {
	key := otpKeyPrefix + otpKey(email)
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == redis.Nil || (err == nil && len(fields) == 0) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}

	expiresAt, _ := strconv.ParseInt(fields["expiresAt"], 10, 64)
	if c.now().UnixMilli() > expiresAt {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return err
		}
		return ErrOTPExpired
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	if attempts >= MaxOTPAttempts {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return err
		}
		return ErrOTPTooManyAttempts
	}
	if fields["code"] != strings.TrimSpace(code) {
		if err := c.client.HIncrBy(ctx, key, "attempts", 1).Err(); err != nil {
			return err
		}
		return ErrOTPInvalid
	}
	return nil
}

func (c *RedisOTPStore) Remove(ctx context.Context, email string) error {
	return c.client.Del(ctx, otpKeyPrefix+otpKey(email)).Err()
}
