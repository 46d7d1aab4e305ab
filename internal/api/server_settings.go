package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/settings"
)

func registerSettingsHandlers(api huma.API, svc Service) {
	type imageOnlyOutput struct {
		Body struct {
			ImageOnly bool `json:"image_only"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "toggle-image-only", Method: http.MethodPost, Path: "/api/v1/settings/image-only", Summary: "Check an image-only switch change", Description: "Returns 409 when a cn.bing.com credential would leave image-only mode.", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Capture string `json:"capture" doc:"Credential currently entered in the settings dialog"`
				Checked bool   `json:"checked" doc:"Requested switch position"`
			}
		}) (*imageOnlyOutput, error) {
			on, err := svc.ToggleImageOnly(ctx, input.Body.Capture, input.Body.Checked)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &imageOnlyOutput{}
			out.Body.ImageOnly = on
			return out, nil
		})

	type saveOutput struct {
		Body settings.SaveResult
	}
	huma.Register(api, huma.Operation{OperationID: "save-settings", Method: http.MethodPost, Path: "/api/v1/settings/save", Summary: "Save the settings dialog", Description: "An empty capture clears the credential and forces image-only mode. The front-end is asked to reload afterwards.", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Capture   string `json:"capture,omitempty" doc:"curl text or BING_HEADER value; empty clears"`
				ImageOnly bool   `json:"image_only,omitempty"`
			}
		}) (*saveOutput, error) {
			res, err := svc.SaveSettings(ctx, input.Body.Capture, input.Body.ImageOnly)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &saveOutput{}
			out.Body = res
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "save-voice", Method: http.MethodPost, Path: "/api/v1/settings/voice", Summary: "Save the voice dialog", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Enabled bool `json:"enabled"`
			}
		}) (*stateOutput, error) {
			st, err := svc.SaveVoice(ctx, input.Body.Enabled)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &stateOutput{}
			out.Body = st
			return out, nil
		})

	type prefillOutput struct {
		Body struct {
			Capture string `json:"capture"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "prefill-settings", Method: http.MethodGet, Path: "/api/v1/settings/prefill", Summary: "Render the persisted credential as curl text", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*prefillOutput, error) {
			text, err := svc.Prefill(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &prefillOutput{}
			out.Body.Capture = text
			return out, nil
		})

	type encodeOutput struct {
		Body struct {
			Header string `json:"header"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "encode-header", Method: http.MethodPost, Path: "/api/v1/settings/encode", Summary: "Encode a capture as a BING_HEADER value", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Capture string `json:"capture" required:"true"`
			}
		}) (*encodeOutput, error) {
			header, err := svc.EncodeHeader(ctx, input.Body.Capture)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &encodeOutput{}
			out.Body.Header = header
			return out, nil
		})
}

func registerStateHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Get the shared UI state", Tags: []string{"State"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			st, err := svc.GetState(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: st}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-dialog", Method: http.MethodPost, Path: "/api/v1/state/dialog", Summary: "Show or hide a dialog", Tags: []string{"State"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Dialog string `json:"dialog,omitempty" doc:"Dialog name (settings, voice, reset); empty hides the current dialog"`
				Hash   string `json:"hash,omitempty" doc:"Location hash such as #dialog=\"settings\"; used when dialog is empty"`
			}
		}) (*stateOutput, error) {
			name := input.Body.Dialog
			if name == "" && input.Body.Hash != "" {
				name = string(appstate.ParseDialogHash(input.Body.Hash))
			}
			st, err := svc.OpenDialog(ctx, name)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: st}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-history", Method: http.MethodPost, Path: "/api/v1/state/history", Summary: "Toggle conversation history", Tags: []string{"State"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Enabled bool `json:"enabled"`
			}
		}) (*stateOutput, error) {
			st, err := svc.SetHistory(ctx, input.Body.Enabled)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: st}, nil
		})
}
