// Package process runs the guarded server as a child process.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/lifecycle"
	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// Default timings.
const (
	DefaultReadyInterval    = 100 * time.Millisecond
	DefaultReadyMaxInterval = 2 * time.Second
	DefaultProbeTimeout     = 2 * time.Second
	DefaultKillAfter        = 10 * time.Second
)

// Prober checks whether the child is ready to serve.
type Prober interface {
	Check(ctx context.Context, url string) error
}

// Config describes the child process.
type Config struct {
	Path string
	Args []string
	// Env is appended to the parent's environment.
	Env []string
	Dir string

	// ReadyURL, when set, is polled until it answers 2xx before Start
	// returns. Otherwise Start returns once the process is spawned.
	ReadyURL         string
	ReadyInterval    time.Duration
	ReadyMaxInterval time.Duration
	ProbeTimeout     time.Duration

	// StopSignal defaults to SIGTERM. The child is killed if it has not
	// exited KillAfter later.
	StopSignal os.Signal
	KillAfter  time.Duration

	Stdout io.Writer
	Stderr io.Writer
}

func (c *Config) setDefaults() {
	if c.ReadyInterval <= 0 {
		c.ReadyInterval = DefaultReadyInterval
	}
	if c.ReadyMaxInterval < c.ReadyInterval {
		c.ReadyMaxInterval = DefaultReadyMaxInterval
		if c.ReadyMaxInterval < c.ReadyInterval {
			c.ReadyMaxInterval = c.ReadyInterval
		}
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.StopSignal == nil {
		c.StopSignal = syscall.SIGTERM
	}
	if c.KillAfter <= 0 {
		c.KillAfter = DefaultKillAfter
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}

// Server supervises one child process. It implements preflight.Server and
// preflight.Stopper.
type Server struct {
	cfg    Config
	host   preflight.Host
	prober Prober
	logger log.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error

	stopping atomic.Bool
}

var (
	_ preflight.Server  = (*Server)(nil)
	_ preflight.Stopper = (*Server)(nil)
)

// New creates a Server. prober may be nil when cfg.ReadyURL is empty.
func New(cfg Config, host preflight.Host, prober Prober) (*Server, error) {
	if cfg.Path == "" {
		return nil, errors.New("process: no command given")
	}
	if cfg.ReadyURL != "" && prober == nil {
		return nil, errors.New("process: ready URL set without a prober")
	}
	cfg.setDefaults()

	return &Server{
		cfg:    cfg,
		host:   host,
		prober: prober,
		logger: host.Logger(),
	}, nil
}

// Name returns the base name of the command.
func (s *Server) Name() string {
	return filepath.Base(s.cfg.Path)
}

// Start spawns the child and waits for readiness. Once ready, an exit of the
// child that Stop did not cause is reported to the host as ErrProcessExited.
func (s *Server) Start(ctx context.Context) error {
	cmd := exec.Command(s.cfg.Path, s.cfg.Args...)
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Name(), err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.exited = exited
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(exited)
	}()

	s.logger.Info("process started",
		log.String("command", s.Name()),
		log.Int("pid", cmd.Process.Pid))

	if err := s.waitReady(ctx, exited); err != nil {
		// Nobody will call Stop on a server that failed to start.
		s.kill(exited)
		return err
	}

	s.host.Go("process "+s.Name(), func() error {
		<-exited
		if s.stopping.Load() {
			return preflight.ErrWorkerDone
		}
		return fmt.Errorf("%w: %s", domain.ErrProcessExited, s.exitStatus())
	})

	return nil
}

func (s *Server) waitReady(ctx context.Context, exited <-chan struct{}) error {
	if s.cfg.ReadyURL == "" {
		return nil
	}

	// waitCtx ends early when the child exits.
	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-exited:
			stop()
		case <-waitCtx.Done():
		}
	}()

	backoff := lifecycle.NewBackoff(s.cfg.ReadyInterval, s.cfg.ReadyMaxInterval)
	for attempt := 1; ; attempt++ {
		probeCtx, cancel := context.WithTimeout(waitCtx, s.cfg.ProbeTimeout)
		err := s.prober.Check(probeCtx, s.cfg.ReadyURL)
		cancel()
		if err == nil {
			s.logger.Info("process ready",
				log.String("url", s.cfg.ReadyURL),
				log.Int("attempts", attempt))
			return nil
		}
		s.logger.Debug("process not ready",
			log.String("url", s.cfg.ReadyURL),
			log.Int("attempt", attempt),
			log.Err(err))

		if err := backoff.Wait(waitCtx); err != nil {
			select {
			case <-exited:
				return fmt.Errorf("%w before becoming ready: %s", domain.ErrProcessExited, s.exitStatus())
			default:
				return ctx.Err()
			}
		}
	}
}

// Stop sends StopSignal and waits for the child to exit. The child is killed
// after KillAfter or when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}
	s.stopping.Store(true)

	select {
	case <-exited:
		return nil
	default:
	}

	s.logger.Info("stopping process",
		log.String("command", s.Name()),
		log.String("signal", s.cfg.StopSignal.String()))

	if err := cmd.Process.Signal(s.cfg.StopSignal); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal %s: %w", s.Name(), err)
	}

	timer := time.NewTimer(s.cfg.KillAfter)
	defer timer.Stop()

	select {
	case <-exited:
		s.logger.Info("process exited", log.String("status", s.exitStatus()))
		return nil
	case <-timer.C:
		s.kill(exited)
		return fmt.Errorf("%s did not exit within %s, killed", s.Name(), s.cfg.KillAfter)
	case <-ctx.Done():
		s.kill(exited)
		return ctx.Err()
	}
}

func (s *Server) kill(exited <-chan struct{}) {
	s.stopping.Store(true)
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("kill failed", log.String("command", s.Name()), log.Err(err))
		return
	}
	<-exited
}

func (s *Server) exitStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitErr == nil {
		return "exit status 0"
	}
	return s.waitErr.Error()
}
