package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairWaiter_ResolveOnce(t *testing.T) {
	w := newPairWaiter()
	key := SessionKey{Token: "tok", InstanceID: "instance_1"}

	w.resolve(&PairResult{InstanceID: "instance_1", QR: "qr-1"})
	w.resolve(&PairResult{InstanceID: "instance_1", QR: "qr-2"})
	w.fail(NewError(KindTransient, "late failure", "tok", "instance_1", nil))

	res, err := w.wait(context.Background(), time.Second, key)
	require.NoError(t, err)
	assert.Equal(t, "qr-1", res.QR)
}

func TestPairWaiter_FailWinsWhenFirst(t *testing.T) {
	w := newPairWaiter()
	key := SessionKey{Token: "tok", InstanceID: "instance_1"}

	w.fail(NewError(KindLoggedOut, "logged out", "tok", "instance_1", nil))
	w.resolve(&PairResult{InstanceID: "instance_1", Connected: true})

	_, err := w.wait(context.Background(), time.Second, key)
	require.Error(t, err)
	assert.Equal(t, KindLoggedOut, KindOf(err))
}

func TestPairWaiter_Timeout(t *testing.T) {
	w := newPairWaiter()
	key := SessionKey{Token: "tok", InstanceID: "instance_1"}

	start := time.Now()
	_, err := w.wait(context.Background(), 20*time.Millisecond, key)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPairWaiter_ContextCancel(t *testing.T) {
	w := newPairWaiter()
	key := SessionKey{Token: "tok", InstanceID: "instance_1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.wait(ctx, time.Minute, key)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestPairWaiter_LateResolveAfterTimeoutDoesNotBlock(t *testing.T) {
	w := newPairWaiter()
	key := SessionKey{Token: "tok", InstanceID: "instance_1"}

	_, err := w.wait(context.Background(), time.Millisecond, key)
	require.Error(t, err)

	done := make(chan struct{})
	go func() {
		w.resolve(&PairResult{InstanceID: "instance_1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late resolve blocked")
	}
}
