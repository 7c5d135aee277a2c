package password

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type slowDigester struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (d *slowDigester) enter() func() {
	n := d.inFlight.Add(1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { d.inFlight.Add(-1) }
}

func (d *slowDigester) Hash(password string) (string, error) {
	defer d.enter()()
	time.Sleep(5 * time.Millisecond)
	return "h:" + password, nil
}

func (d *slowDigester) Verify(password, encoded string) (bool, error) {
	defer d.enter()()
	time.Sleep(5 * time.Millisecond)
	return encoded == "h:"+password, nil
}

func (d *slowDigester) NeedsUpgrade(string) (bool, error) { return false, nil }

func TestPoolBoundsConcurrency(t *testing.T) {
	d := &slowDigester{}
	pool := NewPool(d, 2)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := pool.Verify(context.Background(), "pw", "h:pw")
			if err != nil || !ok {
				t.Errorf("Verify: %v %v", ok, err)
			}
		}()
	}
	wg.Wait()

	if peak := d.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent verifications, saw %d", peak)
	}
}

func TestPoolHonoursContext(t *testing.T) {
	d := &slowDigester{}
	pool := NewPool(d, 1)

	if err := pool.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer pool.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := pool.Hash(ctx, "pw"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPoolWithArgon2(t *testing.T) {
	hasher, err := NewArgon2(Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	pool := NewPool(hasher, 0)

	hash, err := pool.Hash(context.Background(), "pw123456")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ok, err := pool.Verify(context.Background(), "pw123456", hash)
	if err != nil || !ok {
		t.Fatalf("Verify: %v %v", ok, err)
	}
}

func TestStrength(t *testing.T) {
	if Strength("") != 0 {
		t.Fatal("empty password must score 0")
	}
	weak := Strength("password")
	strong := Strength("T4x!q9-vault-Orbit-77-glacier")
	if weak >= strong {
		t.Fatalf("expected weak < strong, got %d vs %d", weak, strong)
	}
	if Strength("alice2024", "alice") > Strength("alice2024") {
		t.Fatal("user inputs must not raise the score")
	}
}
