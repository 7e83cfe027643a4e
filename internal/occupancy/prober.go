package occupancy

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// Prober checks whether one device address is reachable.
//
// Probe never returns an error: an unreachable device, a timeout and a
// failing probe tool are all the ordinary answer false. An empty address
// returns false without touching the network.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string, timeout time.Duration) bool

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, address string, timeout time.Duration) bool {
	if address == "" {
		return false
	}
	return f(ctx, address, timeout)
}

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = time.Second

// CommandProber probes by running an external link-layer ping tool,
// by default "l2ping -c 1 <address>", optionally through sudo.
// A zero exit status means the device acknowledged.
type CommandProber struct {
	command []string
	useSudo bool
	logger  *logging.Logger

	// run executes the prepared command. Replaced in tests.
	run func(cmd *exec.Cmd) error
}

// NewCommandProber creates a prober for the given command prefix. The device
// address is appended as the final argument.
func NewCommandProber(command []string, useSudo bool, logger *logging.Logger) *CommandProber {
	if len(command) == 0 {
		command = []string{"l2ping", "-c", "1"}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CommandProber{
		command: append([]string(nil), command...),
		useSudo: useSudo,
		logger:  logger,
		run:     func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// Probe implements Prober.
func (p *CommandProber) Probe(ctx context.Context, address string, timeout time.Duration) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	// Never let a stored address be read as a flag by the probe tool.
	if strings.HasPrefix(address, "-") {
		p.logger.Warn("refusing to probe suspicious address", "address", address)
		return false
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := p.buildCommand(ctx, address)
	start := time.Now()
	err := p.run(cmd)
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			p.logger.Debug("probe timed out", "address", address, "elapsed", elapsed)
		case errors.As(err, &exitErr):
			p.logger.Debug("device unreachable", "address", address, "exit_code", exitErr.ExitCode())
		default:
			p.logger.Warn("probe command failed", "address", address, "error", err)
		}
		return false
	}

	p.logger.Debug("device reachable", "address", address, "elapsed", elapsed)
	return true
}

func (p *CommandProber) buildCommand(ctx context.Context, address string) *exec.Cmd {
	args := append(append([]string(nil), p.command...), address)
	if p.useSudo {
		args = append([]string{"sudo", "-n"}, args...)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // command comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Kill the whole group so sudo's child dies with it.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}
