package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.LockKey("conversation", "254712345678")

	_, ok, err := client.AcquireLock(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to win")
	}

	_, ok, err = client.AcquireLock(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to lose while held")
	}

	if err := client.ReleaseLock(ctx, key); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	_, ok, err = client.AcquireLock(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to win after release")
	}
}

func TestSetNXDedupe(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.IdempotencyKey("whatsapp", "wamid.123")

	first, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !first {
		t.Fatal("expected first SetNX to succeed")
	}

	second, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil {
		t.Fatalf("second setnx failed: %v", err)
	}
	if second {
		t.Fatal("expected duplicate SetNX to be rejected")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("whatsapp", "wamid.1"); got != "sb:idempotency:whatsapp:wamid.1" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.LockKey("conversation", "254700000001"); got != "sb:lock:conversation:254700000001" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.LockKey("conversation", ""); got != "sb:lock:conversation" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
