package fork_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/internal/fork"
	forkstub "perpsim/internal/fork/stub"
)

func TestWithForkStopsOnSuccess(t *testing.T) {
	mgr := forkstub.New()

	err := fork.WithFork(context.Background(), mgr, "http://live", fork.StartOptions{}, func(h *fork.Handle) error {
		assert.Equal(t, "http://127.0.0.1:0", h.EndpointURL)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Starts())
	assert.Equal(t, 1, mgr.Stops())
}

func TestWithForkStopsOnError(t *testing.T) {
	mgr := forkstub.New()
	boom := errors.New("boom")

	err := fork.WithFork(context.Background(), mgr, "http://live", fork.StartOptions{}, func(*fork.Handle) error {
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mgr.Starts())
	assert.Equal(t, 1, mgr.Stops())
}

func TestWithForkStopsOnPanic(t *testing.T) {
	mgr := forkstub.New()

	require.Panics(t, func() {
		fork.WithFork(context.Background(), mgr, "http://live", fork.StartOptions{}, func(*fork.Handle) error {
			panic("simulation body exploded")
		})
	})

	assert.Equal(t, 1, mgr.Starts())
	assert.Equal(t, 1, mgr.Stops())
}

func TestWithForkNoStopWhenStartFails(t *testing.T) {
	mgr := forkstub.New()
	mgr.StartErr = fork.ErrStartTimeout

	err := fork.WithFork(context.Background(), mgr, "http://live", fork.StartOptions{}, func(*fork.Handle) error {
		t.Fatal("body must not run when start fails")
		return nil
	})

	require.ErrorIs(t, err, fork.ErrStartTimeout)
	assert.Equal(t, 0, mgr.Starts())
	assert.Equal(t, 0, mgr.Stops())
}

func TestStartOptionsRecorded(t *testing.T) {
	mgr := forkstub.New()

	pin := uint64(123)
	_ = fork.WithFork(context.Background(), mgr, "http://live", fork.StartOptions{BlockNumber: &pin, NoMining: true}, func(*fork.Handle) error {
		return nil
	})

	opts := mgr.StartedOptions()
	require.Len(t, opts, 1)
	require.NotNil(t, opts[0].BlockNumber)
	assert.Equal(t, uint64(123), *opts[0].BlockNumber)
	assert.True(t, opts[0].NoMining)
}

func TestExecManagerUnavailableBinary(t *testing.T) {
	mgr := fork.NewExecManager(fork.ExecOptions{Binary: "definitely-not-a-real-fork-binary"})

	assert.False(t, mgr.Installed())

	_, err := mgr.Start(context.Background(), "http://live", fork.StartOptions{})
	require.ErrorIs(t, err, fork.ErrToolingUnavailable)
}

func TestExecManagerStopNilHandle(t *testing.T) {
	mgr := fork.NewExecManager(fork.ExecOptions{})
	require.NoError(t, mgr.Stop(nil))
}
