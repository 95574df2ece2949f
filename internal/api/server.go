// Package api exposes the controller over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tabfocus/internal/cdpcontrol"
	"github.com/dgnsrekt/tabfocus/internal/controller"
	"github.com/dgnsrekt/tabfocus/internal/relay"
	"github.com/dgnsrekt/tabfocus/internal/types"
)

type Service interface {
	Health(ctx context.Context) controller.Health
	ListTabs() []types.Tab
	ListTargets() []types.Target
	GetTarget(id string) (types.Target, error)
	CreateTarget(t types.Target) (types.Target, error)
	ReplaceTarget(id string, t types.Target) (types.Target, error)
	DeleteTarget(id string) error
	Matches(ctx context.Context, targetID string) ([]types.Tab, error)
	Switch(ctx context.Context, targetID string, mods types.Modifiers) (types.SwitchResult, error)
	GetPreferences() types.Preferences
	SetPreferences(ctx context.Context, p types.Preferences) error
}

type targetIDInput struct {
	TargetID string `path:"target_id"`
}

// NewServer builds the HTTP handler. broker may be nil, in which case the
// event stream is not mounted.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("TabFocus API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})
	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
	}

	registerMiscHandlers(api, svc)
	registerTargetHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTargetNotFound, cdpcontrol.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeCDPUnavailable, cdpcontrol.CodeHostRejected:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
