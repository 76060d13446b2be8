package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

const (
	stateClosed int32 = iota
	stateOpen
	stateHalfOpen
)

const (
	// failureThreshold consecutive failures open the breaker
	failureThreshold = 5
	// openCooldown is how long an open breaker rejects calls before a trial
	openCooldown = 30 * time.Second
	// attemptTimeout bounds one Redis round trip
	attemptTimeout = 500 * time.Millisecond
)

// Client wraps go-redis with metrics, a circuit breaker and the key layout of
// the shared snapshot cache.
type Client struct {
	rdb *redis.Client
	now func() time.Time
	// Circuit breaker state
	failureCount int64
	lastFailure  int64
	state        int32
}

// New constructs a Client with sensible pool defaults.
func New(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.IdleTimeout = 5 * time.Minute
	return newClient(redis.NewClient(opt)), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, now: time.Now}
}

// withMetrics wraps operations with metrics collection
func (c *Client) withMetrics(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	metrics.RedisOperationDuration.WithLabelValues(operation, getStatus(err)).Observe(duration)
	if err != nil {
		metrics.RedisErrors.WithLabelValues(operation).Inc()
	}

	return err
}

// getStatus returns "success" or "error" for metrics
func getStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// allow reports whether a call may proceed. An open breaker lets one trial
// through after openCooldown by moving to half-open.
func (c *Client) allow() bool {
	if atomic.LoadInt32(&c.state) != stateOpen {
		return true
	}
	last := time.Unix(atomic.LoadInt64(&c.lastFailure), 0)
	if c.now().Sub(last) >= openCooldown && atomic.CompareAndSwapInt32(&c.state, stateOpen, stateHalfOpen) {
		metrics.RedisCircuitState.Set(float64(stateHalfOpen))
		return true
	}
	return atomic.LoadInt32(&c.state) != stateOpen
}

// checkCircuitBreaker records the outcome of one call. redis.Nil is a miss,
// not a failure.
func (c *Client) checkCircuitBreaker(err error) {
	if err != nil && err != redis.Nil {
		atomic.StoreInt64(&c.lastFailure, c.now().Unix())
		if atomic.AddInt64(&c.failureCount, 1) >= failureThreshold || atomic.LoadInt32(&c.state) == stateHalfOpen {
			if atomic.SwapInt32(&c.state, stateOpen) != stateOpen {
				metrics.RedisCircuitState.Set(float64(stateOpen))
				logger.Log.Warn("circuit breaker opened", zap.String("operation", "redis"), zap.Error(err))
			}
		}
		return
	}
	atomic.StoreInt64(&c.failureCount, 0)
	if atomic.SwapInt32(&c.state, stateClosed) != stateClosed {
		metrics.RedisCircuitState.Set(float64(stateClosed))
		logger.Log.Info("circuit breaker closed", zap.String("operation", "redis"))
	}
}

// retry runs op with exponential backoff, at most 3 retries, bounded by ctx.
func retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, bo)
}

// StoreSnapshots writes the set under its request key with a TTL and then
// announces it on the data channel.
func (c *Client) StoreSnapshots(ctx context.Context, key string, set *models.SnapshotSet, ttl time.Duration) error {
	payload, err := set.ToJSON()
	if err != nil {
		return err
	}
	err = c.withMetrics("set", func() error {
		if !c.allow() {
			return ErrCircuitBreakerOpen
		}
		return retry(ctx, func() error {
			ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
			defer cancel()
			err := c.rdb.Set(ctx, SnapshotKey(key), payload, ttl).Err()
			c.checkCircuitBreaker(err)
			return err
		})
	})
	if err != nil {
		return err
	}
	return c.publish(ctx, DataChannel, Broadcast{Key: key, Snapshots: set})
}

// LoadSnapshots returns the shared set for key, or nil when none is stored.
func (c *Client) LoadSnapshots(ctx context.Context, key string) (*models.SnapshotSet, error) {
	var payload string
	err := c.withMetrics("get", func() error {
		if !c.allow() {
			return ErrCircuitBreakerOpen
		}
		ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		var err error
		payload, err = c.rdb.Get(ctx, SnapshotKey(key)).Result()
		c.checkCircuitBreaker(err)
		if err == redis.Nil {
			return nil
		}
		return err
	})
	if err != nil || payload == "" {
		return nil, err
	}
	return models.SnapshotSetFromJSON(payload)
}

// ClaimFetch tries to become the one process fetching key. The claim expires
// after hold so a crashed claimant cannot block others for long. A won claim
// is announced on the claim channel.
func (c *Client) ClaimFetch(ctx context.Context, key string, hold time.Duration) (bool, error) {
	claimedAt := c.now().UTC()
	var won bool
	err := c.withMetrics("setnx", func() error {
		if !c.allow() {
			return ErrCircuitBreakerOpen
		}
		ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		var err error
		won, err = c.rdb.SetNX(ctx, ClaimKey(key), claimedAt.Format(time.RFC3339Nano), hold).Result()
		c.checkCircuitBreaker(err)
		return err
	})
	if err != nil || !won {
		return false, err
	}
	if err := c.publish(ctx, ClaimChannel, Broadcast{Key: key, ClaimedAt: claimedAt}); err != nil {
		logger.Log.Warn("claim broadcast failed", zap.String("key", key), zap.Error(err))
	}
	return true, nil
}

// ReleaseClaim drops a claim after the claimant finished, successfully or not.
func (c *Client) ReleaseClaim(ctx context.Context, key string) error {
	return c.withMetrics("del", func() error {
		if !c.allow() {
			return ErrCircuitBreakerOpen
		}
		ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		err := c.rdb.Del(ctx, ClaimKey(key)).Err()
		c.checkCircuitBreaker(err)
		return err
	})
}

// Publish wraps rdb.Publish with a short timeout
func (c *Client) Publish(ctx context.Context, channel string, msg interface{}) error {
	return c.withMetrics("publish", func() error {
		if !c.allow() {
			return ErrCircuitBreakerOpen
		}
		ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		err := c.rdb.Publish(ctx, channel, msg).Err()
		c.checkCircuitBreaker(err)
		return err
	})
}

// Subscribe creates a pub/sub subscription
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.withMetrics("ping", func() error {
		return c.rdb.Ping(ctx).Err()
	})
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}
