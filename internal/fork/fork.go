// Package fork manages ephemeral forked-ledger processes. A fork is a
// disposable copy of live chain state at a chosen block, served by a local
// node; everything the engine mutates happens against forks, never the
// live network.
package fork

import (
	"context"
	"errors"
)

var (
	// ErrToolingUnavailable means the fork binary is not installed.
	ErrToolingUnavailable = errors.New("fork tooling unavailable: anvil not found in PATH (install foundry)")

	// ErrStartTimeout means the fork process never became reachable.
	ErrStartTimeout = errors.New("fork start timeout: node did not become ready")
)

// StartOptions tune one fork acquisition.
type StartOptions struct {
	// BlockNumber pins the fork at a historical block, genesis included;
	// nil forks at head.
	BlockNumber *uint64
	// NoMining disables automatic mining so the caller controls block
	// production with evm_mine.
	NoMining bool
}

// Handle is an opaque reference to one running fork.
type Handle struct {
	// EndpointURL is the local HTTP JSON-RPC endpoint.
	EndpointURL string
	// WSEndpointURL is the matching WebSocket endpoint.
	WSEndpointURL string

	stop func() error
}

// Manager is the fork lifecycle. The production implementation shells out
// to the real tool; tests substitute a recording fake.
type Manager interface {
	// Installed reports whether fork tooling is available on this host.
	Installed() bool
	// Start launches a fork of liveRPCURL and blocks until it is ready.
	Start(ctx context.Context, liveRPCURL string, opts StartOptions) (*Handle, error)
	// Stop tears the fork down. Idempotent.
	Stop(handle *Handle) error
}

// WithFork runs fn against a freshly started fork and guarantees exactly
// one Stop per successful Start on every exit path, including panics.
func WithFork(ctx context.Context, mgr Manager, liveRPCURL string, opts StartOptions, fn func(h *Handle) error) error {
	handle, err := mgr.Start(ctx, liveRPCURL, opts)
	if err != nil {
		return err
	}
	defer mgr.Stop(handle)
	return fn(handle)
}
