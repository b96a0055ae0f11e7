// Package cache stores computed trending lists in valkey.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "moodradar:trending:"

// Options configures the valkey connection.
type Options struct {
	Address  string
	Password string
	TTL      time.Duration
}

// Valkey is a trending cache backed by valkey.
type Valkey struct {
	client valkey.Client
	ttl    time.Duration
}

// New connects to valkey and verifies the connection with a PING.
func New(ctx context.Context, opts Options) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client %s: %w", opts.Address, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", opts.Address, err)
	}

	slog.Info("connected to valkey", "address", opts.Address)
	return NewWithClient(client, opts.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client valkey.Client, ttl time.Duration) *Valkey {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Valkey{client: client, ttl: ttl}
}

// GetTrending returns the cached list for limit, if present.
func (v *Valkey) GetTrending(ctx context.Context, limit int) ([]string, bool, error) {
	raw, err := v.client.Do(ctx, v.client.B().Get().Key(trendingKey(limit)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get trending %d: %w", limit, err)
	}

	var topics []string
	if err := json.Unmarshal(raw, &topics); err != nil {
		return nil, false, fmt.Errorf("decode trending %d: %w", limit, err)
	}
	return topics, true, nil
}

// SetTrending stores topics for limit with the configured TTL.
func (v *Valkey) SetTrending(ctx context.Context, limit int, topics []string) error {
	data, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode trending: %w", err)
	}

	key := trendingKey(limit)
	completed := []valkey.Completed{
		v.client.B().Set().Key(key).Value(valkey.BinaryString(data)).Build(),
		v.client.B().Expire().Key(key).Seconds(int64(v.ttl.Seconds())).Build(),
	}
	for _, res := range v.client.DoMulti(ctx, completed...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("set trending %d: %w", limit, err)
		}
	}
	return nil
}

// Close closes the underlying client.
func (v *Valkey) Close() {
	v.client.Close()
}

func trendingKey(limit int) string {
	return keyPrefix + strconv.Itoa(limit)
}
