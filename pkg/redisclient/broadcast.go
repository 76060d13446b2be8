package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
	"go.uber.org/zap"
)

// Channel names of the cross-process broadcast.
const (
	ClaimChannel = "ticker:fetch-claimed"
	DataChannel  = "ticker:data-available"
)

// SnapshotKey holds the latest shared set for one request key.
func SnapshotKey(key string) string { return "ticker:snapshots:" + key }

// ClaimKey is held by the process currently fetching key.
func ClaimKey(key string) string { return "ticker:claim:" + key }

// Broadcast is the JSON payload on both channels. ClaimedAt is set on claim
// events, Snapshots on data events.
type Broadcast struct {
	Key       string              `json:"key"`
	ClaimedAt time.Time           `json:"claimed_at,omitempty"`
	Snapshots *models.SnapshotSet `json:"snapshots,omitempty"`
}

func (c *Client) publish(ctx context.Context, channel string, b Broadcast) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	if err := c.Publish(ctx, channel, string(payload)); err != nil {
		return err
	}
	metrics.BroadcastCounter.WithLabelValues(channel).Inc()
	return nil
}

// DecodeBroadcast parses one pub/sub payload. Data events are re-validated.
func DecodeBroadcast(payload string) (Broadcast, error) {
	var b Broadcast
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return b, fmt.Errorf("json unmarshal error: %w", err)
	}
	if b.Snapshots != nil {
		raw, err := json.Marshal(b.Snapshots)
		if err != nil {
			return b, err
		}
		set, err := models.SnapshotSetFromJSON(string(raw))
		if err != nil {
			return b, err
		}
		b.Snapshots = set
	}
	return b, nil
}

// Listen subscribes to both broadcast channels and calls handle for every
// decodable message until ctx is done. Undecodable messages are logged and skipped.
func (c *Client) Listen(ctx context.Context, handle func(channel string, b Broadcast)) error {
	pubsub := c.Subscribe(ctx, ClaimChannel, DataChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting success
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Log.Info("listening for ticker broadcasts",
		zap.Strings("channels", []string{ClaimChannel, DataChannel}))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b, err := DecodeBroadcast(msg.Payload)
			if err != nil {
				logger.Log.Warn("dropping undecodable broadcast", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handle(msg.Channel, b)
		}
	}
}
