// Package server wires the store, the background runners and the HTTP
// command surface into one process.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/watchtrail/watchtrail/internal/profile"
	"github.com/watchtrail/watchtrail/plugin/ai"
	"github.com/watchtrail/watchtrail/server/middleware"
	apiv1 "github.com/watchtrail/watchtrail/server/router/api/v1"
	"github.com/watchtrail/watchtrail/server/runner/categorize"
	"github.com/watchtrail/watchtrail/server/runner/retention"
	"github.com/watchtrail/watchtrail/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer  *echo.Echo
	queue       *categorize.Runner
	retention   *retention.Runner
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// NewServer assembles the tracker process. runCtx bounds the lifetime of the
// background runners.
func NewServer(runCtx context.Context, prof *profile.Profile, st *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	echoServer := echo.New()
	echoServer.Debug = prof.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())

	rateLimiter := middleware.NewRateLimiter(10, 20)
	echoServer.Use(rateLimiter.Middleware())

	queue := categorize.NewRunner(st, func(apiKey string) categorize.Categorizer {
		return newClassifier(prof, apiKey)
	})

	s := &Server{
		Profile:     prof,
		Store:       st,
		echoServer:  echoServer,
		queue:       queue,
		retention:   retention.NewRunner(st),
		rateLimiter: rateLimiter,
		logger:      logger,
	}

	apiV1Service := apiv1.NewAPIV1Service(runCtx, prof, st, queue, logger)
	apiV1Service.RegisterRoutes(echoServer)

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	return s, nil
}

// Start runs the HTTP listener and the background runners until ctx is
// canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.retention.Run(ctx)
		return nil
	})

	// Jobs queued before a previous shutdown are rebuilt from the store.
	group.Go(func() error {
		settings, err := s.Store.GetSettings(ctx)
		if err != nil {
			s.logger.Error("failed to read settings at startup", "error", err)
			return nil
		}
		if !settings.AIReady() {
			return nil
		}
		added, err := s.queue.EnqueuePending(ctx)
		if err != nil {
			s.logger.Error("failed to rebuild categorization queue", "error", err)
			return nil
		}
		if added > 0 {
			s.logger.Info("rebuilt categorization queue", "queued", added)
			s.queue.Start(ctx)
		}
		return nil
	})

	group.Go(func() error {
		address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		s.logger.Info("server listening", "address", address, "version", s.Profile.Version)
		return s.echoServer.Start(address)
	})

	group.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.rateLimiter.Prune()
			case <-ctx.Done():
				return nil
			}
		}
	})

	return group.Wait()
}

// Shutdown stops the HTTP listener and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close store", "error", err)
	}
	s.logger.Info("tracker stopped properly")
}

// newClassifier builds a classifier bound to an API key with every other
// knob taken from the profile.
func newClassifier(prof *profile.Profile, apiKey string) *ai.Classifier {
	cfg := ai.DefaultConfig()
	cfg.BaseURL = prof.AIBaseURL
	cfg.APIKey = apiKey
	cfg.PrimaryModel = prof.AIPrimaryModel
	cfg.FallbackModel = prof.AIFallbackModel
	cfg.Timeout = time.Duration(prof.AIRequestTimeout) * time.Second
	cfg.Referer = prof.InstanceURL
	return ai.NewClassifier(cfg)
}
