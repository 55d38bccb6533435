// Package v1 exposes the tracker's command surface. Every operation goes
// through a single dispatcher and returns the same envelope, so the HTTP
// routes here are thin 1:1 adapters.
package v1

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/watchtrail/watchtrail/internal/profile"
	"github.com/watchtrail/watchtrail/plugin/ai"
	"github.com/watchtrail/watchtrail/server/runner/categorize"
	"github.com/watchtrail/watchtrail/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Queue   *categorize.Runner

	dispatcher *Dispatcher
}

// NewAPIV1Service wires the dispatcher for the configured profile. runCtx is
// the server lifetime context; queue draining started by a request keeps
// running after the request ends.
func NewAPIV1Service(runCtx context.Context, prof *profile.Profile, st *store.Store, queue *categorize.Runner, logger *slog.Logger) *APIV1Service {
	classifierFor := func(apiKey string) ClassifierService {
		cfg := ai.DefaultConfig()
		cfg.BaseURL = prof.AIBaseURL
		cfg.APIKey = apiKey
		cfg.PrimaryModel = prof.AIPrimaryModel
		cfg.FallbackModel = prof.AIFallbackModel
		if prof.AIRequestTimeout > 0 {
			cfg.Timeout = time.Duration(prof.AIRequestTimeout) * time.Second
		}
		cfg.Referer = prof.InstanceURL
		return ai.NewClassifier(cfg)
	}
	return &APIV1Service{
		Profile:    prof,
		Store:      st,
		Queue:      queue,
		dispatcher: NewDispatcher(runCtx, st, queue, classifierFor, logger),
	}
}

// Dispatcher exposes the command dispatcher for non-HTTP callers.
func (s *APIV1Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// RegisterRoutes mounts the command surface on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1")
	group.Use(middleware.CORS())

	group.POST("/watch", s.command(CmdVideoWatched))
	group.GET("/settings", s.command(CmdGetSettings))
	group.POST("/settings", s.command(CmdUpdateSettings))
	group.POST("/report", s.command(CmdGenerateWeeklyReport))
	group.GET("/report", s.command(CmdGetReportCache))
	group.POST("/apikey/test", s.command(CmdTestAPIKey))
	group.POST("/categorize", s.command(CmdCategorizePending))
	group.POST("/clear", s.command(CmdClearData))
	group.GET("/history", s.command(CmdGetHistory))
	group.POST("/history/import", s.command(CmdImportHistory))
	group.GET("/history/export", s.command(CmdExportHistory))
	group.GET("/stats", s.command(CmdGetStats))

	group.DELETE("/history/:mediaId", s.deleteHistoryEntry)
}

// command adapts one command to an HTTP handler. The envelope always travels
// with status 200; Success carries the outcome.
func (s *APIV1Service) command(cmd Command) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload json.RawMessage
		if c.Request().Body != nil {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
			}
			payload = body
		}
		result := s.dispatcher.Handle(c.Request().Context(), cmd, payload)
		return c.JSON(http.StatusOK, result)
	}
}

func (s *APIV1Service) deleteHistoryEntry(c echo.Context) error {
	payload, err := json.Marshal(map[string]string{"mediaId": c.Param("mediaId")})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build payload")
	}
	result := s.dispatcher.Handle(c.Request().Context(), CmdDeleteHistoryEntry, payload)
	return c.JSON(http.StatusOK, result)
}
