// Package bot implements the session supervisor: component lifecycle,
// transport reconnection, and the task scheduler for the Envo agent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/dispatcher"
	"github.com/envologia/envo/internal/telegram"
	"github.com/envologia/envo/internal/transport"
)

// Status is the externally observable lifecycle state of the agent.
type Status string

// Lifecycle states.
const (
	StatusMissingCredentials Status = "missing_credentials"
	StatusReady              Status = "ready"
	StatusStarting           Status = "starting"
	StatusRunning            Status = "running"
	StatusError              Status = "error"
)

const (
	maxReconnectAttempts    = 3
	initialReconnectBackoff = time.Second
)

// Supervisor owns the agent lifecycle: it registers the dispatcher on the
// transport, runs the listener and the scheduler under one errgroup, and
// restarts the listener with bounded backoff when it drops.
type Supervisor struct {
	log        *slog.Logger
	cfg        *config.Config
	adapter    *telegram.Adapter
	dispatcher *dispatcher.Dispatcher
	scheduler  *Scheduler

	mu     sync.Mutex
	status Status
}

// NewSupervisor creates the supervisor. Missing credentials are detected
// here so status can be reported before any start attempt.
func NewSupervisor(
	log *slog.Logger,
	cfg *config.Config,
	adapter *telegram.Adapter,
	disp *dispatcher.Dispatcher,
	scheduler *Scheduler,
) *Supervisor {
	status := StatusReady
	if cfg.Telegram.Token == "" || cfg.Gemini.APIKey == "" {
		status = StatusMissingCredentials
	}

	return &Supervisor{
		log:        log.With("component", "supervisor"),
		cfg:        cfg,
		adapter:    adapter,
		dispatcher: disp,
		scheduler:  scheduler,
		status:     status,
	}
}

// Status returns the current lifecycle state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Run starts all components and blocks until ctx is cancelled or a
// component fails permanently. Calling Run while already starting or
// running returns an error without side effects.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusMissingCredentials:
		s.mu.Unlock()
		return fmt.Errorf("cannot start: credentials are not configured")
	case StatusStarting, StatusRunning:
		s.mu.Unlock()
		return fmt.Errorf("supervisor is already running")
	}
	s.status = StatusStarting
	s.mu.Unlock()

	// The dispatcher must be wired before polling begins so no update
	// arrives without a handler.
	s.adapter.OnEvent(func(evCtx context.Context, ev *transport.Event) {
		s.dispatcher.Dispatch(evCtx, ev)
	})

	me, err := s.adapter.Me(ctx)
	if err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("transport identity check failed: %w", err)
	}
	s.log.Info("Transport authenticated", "account_id", me.ID, "username", me.Username)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runListener(gCtx)
	})

	g.Go(func() error {
		if err := s.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		s.log.Info("Shutdown signal received, stopping scheduler...")
		if err := s.scheduler.Stop(); err != nil {
			s.log.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	s.setStatus(StatusRunning)
	s.log.Info("Supervisor running. Waiting for shutdown signal or error...")

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		s.setStatus(StatusError)
		s.log.Error("Supervisor stopped due to error", "error", runErr)
		return runErr
	}

	s.setStatus(StatusReady)
	s.log.Info("Supervisor stopped gracefully.")
	return nil
}

// runListener runs the long-poll loop, reconnecting with exponential
// backoff. An unexpected stop beyond the attempt limit is a permanent
// failure that tears down the whole group.
func (s *Supervisor) runListener(ctx context.Context) error {
	backoff := initialReconnectBackoff

	for attempt := 1; ; attempt++ {
		s.log.Info("Starting transport listener...", "attempt", attempt)
		s.adapter.Start(ctx)

		if ctx.Err() != nil {
			s.log.Info("Transport listener stopped.")
			return nil
		}

		if attempt >= maxReconnectAttempts {
			return fmt.Errorf("transport listener stopped after %d attempts", attempt)
		}

		s.log.Warn("Transport listener stopped unexpectedly, reconnecting",
			"attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
