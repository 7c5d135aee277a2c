package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Digester is the synchronous hashing primitive wrapped by [Pool].
type Digester interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Pool caps the number of concurrent hash/verify computations. Callers block
// until a slot is free (or ctx ends) and then run the computation inline, so
// the API stays synchronous.
type Pool struct {
	digester Digester
	sem      *semaphore.Weighted
}

// NewPool bounds d to size concurrent operations. size <= 0 uses GOMAXPROCS.
func NewPool(d Digester, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{digester: d, sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return p.digester.Hash(password)
}

func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.digester.Verify(password, encodedHash)
}

// NeedsUpgrade is cheap and bypasses the pool.
func (p *Pool) NeedsUpgrade(encodedHash string) (bool, error) {
	return p.digester.NeedsUpgrade(encodedHash)
}
