package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabfocus/internal/controller"
	"github.com/dgnsrekt/tabfocus/internal/types"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
			controller.Health
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Health = svc.Health(ctx)
			out.Body.Status = "ok"
			if !out.Body.CDPConnected {
				out.Body.Status = "degraded"
			}
			return out, nil
		})

	type tabsOutput struct {
		Body struct {
			Tabs []types.Tab `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List cached tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			out := &tabsOutput{}
			out.Body.Tabs = svc.ListTabs()
			return out, nil
		})

	type preferencesOutput struct {
		Body types.Preferences
	}
	huma.Register(api, huma.Operation{OperationID: "get-preferences", Method: http.MethodGet, Path: "/api/v1/preferences", Summary: "Get preferences", Tags: []string{"Preferences"}},
		func(ctx context.Context, input *struct{}) (*preferencesOutput, error) {
			return &preferencesOutput{Body: svc.GetPreferences()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-preferences", Method: http.MethodPut, Path: "/api/v1/preferences", Summary: "Replace preferences", Tags: []string{"Preferences"}},
		func(ctx context.Context, input *struct {
			Body types.Preferences
		}) (*preferencesOutput, error) {
			if err := svc.SetPreferences(ctx, input.Body); err != nil {
				return nil, mapErr(err)
			}
			return &preferencesOutput{Body: svc.GetPreferences()}, nil
		})
}
