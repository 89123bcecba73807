package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestDispatchLockAcquireFirstTry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := &DispatchLock{rdb: db, newToken: func() string { return "token-1" }}

	mock.ExpectSetNX("dispatch_lock:u1:btc_buy", "token-1", 90*time.Second).SetVal(true)

	token, err := lock.Acquire(context.Background(), "u1", "btc_buy", 90*time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-1" {
		t.Fatalf("unexpected token: %q", token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}

func TestDispatchLockAcquireHeldPastWaitBound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := &DispatchLock{rdb: db, newToken: func() string { return "token-2" }}

	// Zero wait: one attempt, then give up.
	mock.ExpectSetNX("dispatch_lock:u1:btc_buy", "token-2", 90*time.Second).SetVal(false)

	_, err := lock.Acquire(context.Background(), "u1", "btc_buy", 90*time.Second, 0)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestDispatchLockAcquireRetriesUntilFree(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := &DispatchLock{rdb: db, newToken: func() string { return "token-3" }}

	mock.ExpectSetNX("dispatch_lock:u1:eth_sell", "token-3", time.Minute).SetVal(false)
	mock.ExpectSetNX("dispatch_lock:u1:eth_sell", "token-3", time.Minute).SetVal(true)

	token, err := lock.Acquire(context.Background(), "u1", "eth_sell", time.Minute, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-3" {
		t.Fatalf("unexpected token: %q", token)
	}
}

func TestDispatchLockRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := &DispatchLock{rdb: db, newToken: func() string { return "token-4" }}

	mock.ExpectEval(releaseScript, []string{"dispatch_lock:u1:btc_buy"}, "token-4").SetVal(int64(1))

	if err := lock.Release(context.Background(), "u1", "btc_buy", "token-4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}
