package cache

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"
)

func TestTrendingKey(t *testing.T) {
	if got := trendingKey(10); got != "moodradar:trending:10" {
		t.Errorf("trendingKey(10) = %q", got)
	}
}

// Runs against a live server when VALKEY_TEST_ADDRESS is set.
func TestValkeyRoundTrip(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDRESS")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDRESS not set")
	}

	ctx := context.Background()
	c, err := New(ctx, Options{Address: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	limit := int(time.Now().UnixNano()%100000) + 1000
	if _, ok, err := c.GetTrending(ctx, limit); err != nil || ok {
		t.Fatalf("GetTrending on empty key = %v %v", ok, err)
	}

	want := []string{"alpha", "beta"}
	if err := c.SetTrending(ctx, limit, want); err != nil {
		t.Fatalf("SetTrending: %v", err)
	}
	got, ok, err := c.GetTrending(ctx, limit)
	if err != nil || !ok || !reflect.DeepEqual(got, want) {
		t.Errorf("GetTrending() = %v %v %v", got, ok, err)
	}
}
