// Package stub implements fork.Manager for testing, recording lifecycle
// calls instead of launching processes.
package stub

import (
	"context"
	"sync"

	"perpsim/internal/fork"
)

// Manager is a recording fork.Manager.
type Manager struct {
	mu sync.Mutex

	// InstalledFlag is what Installed reports. Defaults to true via New.
	InstalledFlag bool
	// StartErr, when set, fails Start with it.
	StartErr error
	// Endpoint and WSEndpoint go on every started handle.
	Endpoint   string
	WSEndpoint string

	starts      int
	stops       int
	startedOpts []fork.StartOptions
}

// New creates an installed stub manager.
func New() *Manager {
	return &Manager{
		InstalledFlag: true,
		Endpoint:      "http://127.0.0.1:0",
	}
}

// Installed reports the programmed flag.
func (m *Manager) Installed() bool {
	return m.InstalledFlag
}

// Start records the call and hands out a handle.
func (m *Manager) Start(_ context.Context, _ string, opts fork.StartOptions) (*fork.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	m.starts++
	m.startedOpts = append(m.startedOpts, opts)
	return &fork.Handle{
		EndpointURL:   m.Endpoint,
		WSEndpointURL: m.WSEndpoint,
	}, nil
}

// Stop records the call.
func (m *Manager) Stop(_ *fork.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

// Starts returns how many forks were started.
func (m *Manager) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many forks were stopped.
func (m *Manager) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// StartedOptions returns the options of each Start in order.
func (m *Manager) StartedOptions() []fork.StartOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fork.StartOptions(nil), m.startedOpts...)
}
