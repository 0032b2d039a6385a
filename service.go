package leanmq

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ServiceState is one of the Service Supervisor's lifecycle states.
type ServiceState int

const (
	StateNew ServiceState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s ServiceState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Service owns the Dispatcher's worker goroutine and its lifecycle.
// Re-entry is safe and idempotent: Start on a non-NEW Service is a
// no-op, Stop on a non-RUNNING Service is a no-op.
type Service struct {
	dispatcher *Dispatcher
	cfg        ServiceConfig
	log        zerolog.Logger

	mu    sync.Mutex
	state ServiceState
	done  chan struct{}
	stop  chan struct{}
}

func newService(d *Dispatcher, cfg ServiceConfig, log zerolog.Logger) *Service {
	return &Service{
		dispatcher: d,
		cfg:        cfg,
		log:        log.With().Str("component", "service").Logger(),
		state:      StateNew,
	}
}

// Start transitions NEW -> RUNNING and spawns the worker goroutine that
// repeatedly calls the Dispatcher's RunOnce. If cfg.InstallSignals is
// true, SIGINT/SIGTERM invoke Stop. Calling Start on a non-NEW Service is
// a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.done = make(chan struct{})
	s.stop = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)

	if s.cfg.InstallSignals {
		s.installSignalHandler()
	}

	s.log.Info().Msg("service started")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.ProcessInterval
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := s.dispatcher.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("dispatcher iteration failed")
			time.Sleep(time.Second)
			continue
		}

		if interval > 0 {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

func (s *Service) installSignalHandler() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			s.Stop()
		case <-s.done:
		}
		signal.Stop(sigCh)
	}()
}

// Stop transitions RUNNING -> STOPPING -> STOPPED. It signals the worker
// to exit at the next iteration boundary and waits up to
// cfg.WorkerThreadTimeout for it to finish; after that it returns
// regardless, since the worker is a cooperative actor and is never force
// killed. Stop on a non-RUNNING Service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	timeout := s.cfg.WorkerThreadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case <-done:
		s.log.Info().Msg("service stopped gracefully")
	case <-time.After(timeout):
		s.log.Warn().Msg("service stop timed out; worker may still be finishing its iteration")
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// IsAlive reports whether the worker exists and has not exited.
func (s *Service) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning && s.state != StateStopping {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// State returns the Service's current lifecycle state.
func (s *Service) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
