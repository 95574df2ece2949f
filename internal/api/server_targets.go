package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

// targetBody holds the user-editable target fields. Binding fields are
// owned by the switcher and cannot be set through the API.
type targetBody struct {
	Title               string                     `json:"title,omitempty"`
	Kind                types.TargetKind           `json:"kind,omitempty" enum:"favorite,workspace"`
	WorkspaceID         string                     `json:"workspaceId,omitempty"`
	URL                 string                     `json:"url" minLength:"1"`
	MatchMode           *types.MatchMode           `json:"matchMode,omitempty" enum:"exact,prefix,domain,pattern"`
	MatchPattern        *string                    `json:"matchPattern,omitempty"`
	MultiWindowBehavior *types.MultiWindowBehavior `json:"multiWindowBehavior,omitempty" enum:"focus,adopt"`
}

func (b targetBody) target() types.Target {
	return types.Target{
		Title:               b.Title,
		Kind:                b.Kind,
		WorkspaceID:         b.WorkspaceID,
		URL:                 b.URL,
		MatchMode:           b.MatchMode,
		MatchPattern:        b.MatchPattern,
		MultiWindowBehavior: b.MultiWindowBehavior,
	}
}

// switchBody mirrors types.Modifiers with every flag optional.
type switchBody struct {
	Shift      bool `json:"shift,omitempty" doc:"Always open a new tab"`
	Background bool `json:"background,omitempty" doc:"Open without activating"`
	Alt        bool `json:"alt,omitempty" doc:"Cycle through matching tabs"`
}

type targetOutput struct {
	Body types.Target
}

func registerTargetHandlers(api huma.API, svc Service) {
	type targetsOutput struct {
		Body struct {
			Targets []types.Target `json:"targets"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-targets", Method: http.MethodGet, Path: "/api/v1/targets", Summary: "List targets", Tags: []string{"Targets"}},
		func(ctx context.Context, input *struct{}) (*targetsOutput, error) {
			out := &targetsOutput{}
			out.Body.Targets = svc.ListTargets()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "create-target", Method: http.MethodPost, Path: "/api/v1/targets", Summary: "Create a target", Tags: []string{"Targets"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body targetBody
		}) (*targetOutput, error) {
			t, err := svc.CreateTarget(input.Body.target())
			if err != nil {
				return nil, mapErr(err)
			}
			return &targetOutput{Body: t}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-target", Method: http.MethodGet, Path: "/api/v1/targets/{target_id}", Summary: "Get a target", Tags: []string{"Targets"}},
		func(ctx context.Context, input *targetIDInput) (*targetOutput, error) {
			t, err := svc.GetTarget(input.TargetID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &targetOutput{Body: t}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "replace-target", Method: http.MethodPut, Path: "/api/v1/targets/{target_id}", Summary: "Replace a target", Tags: []string{"Targets"}},
		func(ctx context.Context, input *struct {
			TargetID string `path:"target_id"`
			Body     targetBody
		}) (*targetOutput, error) {
			t, err := svc.ReplaceTarget(input.TargetID, input.Body.target())
			if err != nil {
				return nil, mapErr(err)
			}
			return &targetOutput{Body: t}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-target", Method: http.MethodDelete, Path: "/api/v1/targets/{target_id}", Summary: "Delete a target", Tags: []string{"Targets"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *targetIDInput) (*struct{}, error) {
			return nil, mapErr(svc.DeleteTarget(input.TargetID))
		})

	type matchesOutput struct {
		Body struct {
			TargetID string      `json:"targetId"`
			Tabs     []types.Tab `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "target-matches", Method: http.MethodGet, Path: "/api/v1/targets/{target_id}/matches", Summary: "List ranked candidate tabs", Tags: []string{"Targets"}},
		func(ctx context.Context, input *targetIDInput) (*matchesOutput, error) {
			tabs, err := svc.Matches(ctx, input.TargetID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &matchesOutput{}
			out.Body.TargetID = input.TargetID
			out.Body.Tabs = tabs
			return out, nil
		})

	type switchOutput struct {
		Body types.SwitchResult
	}
	huma.Register(api, huma.Operation{OperationID: "switch-target", Method: http.MethodPost, Path: "/api/v1/targets/{target_id}/switch", Summary: "Focus, cycle or open the target's tab", Tags: []string{"Switch"}},
		func(ctx context.Context, input *struct {
			TargetID string `path:"target_id"`
			Body     *switchBody
		}) (*switchOutput, error) {
			var mods types.Modifiers
			if input.Body != nil {
				mods = types.Modifiers(*input.Body)
			}
			res, err := svc.Switch(ctx, input.TargetID, mods)
			if err != nil {
				return nil, mapErr(err)
			}
			return &switchOutput{Body: res}, nil
		})
}
