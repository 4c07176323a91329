package fork

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"perpsim/internal/chain"
)

// DefaultStartTimeout bounds how long a fork node may take to become
// reachable before Start fails with ErrStartTimeout.
const DefaultStartTimeout = 30 * time.Second

// readyPollInterval is the wait between readiness probes.
const readyPollInterval = 250 * time.Millisecond

// ExecManager implements Manager by shelling out to anvil.
type ExecManager struct {
	binary       string
	startTimeout time.Duration
	logger       zerolog.Logger
}

// ExecOptions configure an ExecManager.
type ExecOptions struct {
	// Binary is the fork tool name or path; defaults to "anvil".
	Binary string
	// StartTimeout overrides DefaultStartTimeout when positive.
	StartTimeout time.Duration
	Logger       zerolog.Logger
}

// NewExecManager creates the production fork manager.
func NewExecManager(opts ExecOptions) *ExecManager {
	binary := opts.Binary
	if binary == "" {
		binary = "anvil"
	}
	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	return &ExecManager{
		binary:       binary,
		startTimeout: timeout,
		logger:       opts.Logger.With().Str("component", "fork").Logger(),
	}
}

// Installed reports whether the fork binary resolves on PATH.
func (m *ExecManager) Installed() bool {
	_, err := exec.LookPath(m.binary)
	return err == nil
}

// Start launches a fork of liveRPCURL on an ephemeral port and polls its
// endpoint until the node answers eth_blockNumber.
func (m *ExecManager) Start(ctx context.Context, liveRPCURL string, opts StartOptions) (*Handle, error) {
	if !m.Installed() {
		return nil, ErrToolingUnavailable
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("pick fork port: %w", err)
	}

	args := []string{
		"--fork-url", liveRPCURL,
		"--port", strconv.Itoa(port),
		"--silent",
	}
	if opts.BlockNumber != nil {
		args = append(args, "--fork-block-number", strconv.FormatUint(*opts.BlockNumber, 10))
	}
	if opts.NoMining {
		args = append(args, "--no-mining")
	}

	cmd := exec.Command(m.binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", m.binary, err)
	}

	endpoint := fmt.Sprintf("http://127.0.0.1:%d", port)
	wsEndpoint := fmt.Sprintf("ws://127.0.0.1:%d", port)
	started := m.logger.Debug().Int("port", port)
	if opts.BlockNumber != nil {
		started = started.Uint64("block", *opts.BlockNumber)
	}
	started.Msg("fork process started, waiting for readiness")

	var stopOnce sync.Once
	stop := func() error {
		var stopErr error
		stopOnce.Do(func() {
			if cmd.Process != nil {
				stopErr = cmd.Process.Kill()
			}
			cmd.Wait()
		})
		return stopErr
	}

	if err := m.awaitReady(ctx, endpoint); err != nil {
		stop()
		return nil, err
	}

	m.logger.Debug().Str("endpoint", endpoint).Msg("fork ready")
	return &Handle{
		EndpointURL:   endpoint,
		WSEndpointURL: wsEndpoint,
		stop:          stop,
	}, nil
}

// awaitReady polls the child endpoint until it answers or the start
// timeout elapses.
func (m *ExecManager) awaitReady(ctx context.Context, endpoint string) error {
	probe := chain.NewHTTPClient(endpoint,
		chain.WithMaxRetries(0),
		chain.WithTimeout(2*time.Second),
	)

	deadline := time.Now().Add(m.startTimeout)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := probe.BlockNumber(probeCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrStartTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

// Stop kills the fork process. Safe to call more than once.
func (m *ExecManager) Stop(handle *Handle) error {
	if handle == nil || handle.stop == nil {
		return nil
	}
	return handle.stop()
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
