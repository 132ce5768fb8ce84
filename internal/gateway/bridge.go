package gateway

import (
	"context"
	"sync"
	"time"
)

// PairResult is what a pairing request resolves to: either a QR code
// to scan, or an already-open connection.
type PairResult struct {
	InstanceID string    `json:"instance_id"`
	QR         string    `json:"qr,omitempty"`
	Connected  bool      `json:"connected"`
	Identity   *Identity `json:"identity,omitempty"`
}

// pairWaiter bridges the caller of a pairing request to the first
// usable event from the session event loop. It resolves exactly once;
// later resolutions are dropped.
type pairWaiter struct {
	once sync.Once
	ch   chan pairOutcome
}

type pairOutcome struct {
	res *PairResult
	err error
}

func newPairWaiter() *pairWaiter {
	return &pairWaiter{ch: make(chan pairOutcome, 1)}
}

func (w *pairWaiter) resolve(res *PairResult) {
	w.once.Do(func() {
		w.ch <- pairOutcome{res: res}
	})
}

func (w *pairWaiter) fail(err error) {
	w.once.Do(func() {
		w.ch <- pairOutcome{err: err}
	})
}

// wait blocks until the waiter resolves, the timeout lapses, or the
// context is canceled
func (w *pairWaiter) wait(ctx context.Context, timeout time.Duration, key SessionKey) (*PairResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-w.ch:
		return out.res, out.err
	case <-timer.C:
		return nil, NewError(KindTransient, "pairing did not complete in time", key.Token, key.InstanceID, nil)
	case <-ctx.Done():
		return nil, NewError(KindTransient, "pairing canceled", key.Token, key.InstanceID, ctx.Err())
	}
}
