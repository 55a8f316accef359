package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryGuard_FirstCallerWins(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, err := g.TryAcquire(ctx, "inv:deducted:42", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = g.TryAcquire(ctx, "inv:deducted:42", time.Hour)
	if err != nil || ok {
		t.Fatalf("second acquire must fail: ok=%v err=%v", ok, err)
	}
	ok, err = g.TryAcquire(ctx, "inv:deducted:43", time.Hour)
	if err != nil || !ok {
		t.Fatalf("different key must acquire: ok=%v err=%v", ok, err)
	}
}

func TestMemoryGuard_ConcurrentAcquireExactlyOne(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	const goroutines = 16
	var acquired atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := g.TryAcquire(ctx, "inv:deducted:42", 7*24*time.Hour)
			if err != nil {
				t.Errorf("acquire error: %v", err)
				return
			}
			if ok {
				acquired.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := acquired.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestMemoryGuard_TTLExpiry(t *testing.T) {
	g := NewMemoryGuard()
	now := time.Now()
	g.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := g.TryAcquire(ctx, "k", time.Minute); !ok {
		t.Fatal("first acquire must succeed")
	}
	now = now.Add(30 * time.Second)
	if ok, _ := g.TryAcquire(ctx, "k", time.Minute); ok {
		t.Fatal("acquire within TTL must fail")
	}
	now = now.Add(31 * time.Second)
	if ok, _ := g.TryAcquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after TTL expiry must succeed")
	}
}

func TestKeyConvention(t *testing.T) {
	if got := Key("inventory", "deducted", int64(42)); got != "inventory:deducted:42" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key("cart", "cleared", "user-1"); got != "cart:cleared:user-1" {
		t.Fatalf("unexpected key %q", got)
	}
}
