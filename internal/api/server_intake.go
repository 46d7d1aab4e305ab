package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/bingo_bridge/internal/bot"
	"github.com/dgnsrekt/bingo_bridge/internal/intake"
)

func registerIntakeHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "create-panel", Method: http.MethodPost, Path: "/api/v1/intake", Summary: "Create a closed intake panel", Tags: []string{"Intake"}},
		func(ctx context.Context, input *struct{}) (*panelOutput, error) {
			snap, err := svc.CreatePanel(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &panelOutput{Body: snap}, nil
		})

	type listPanelsOutput struct {
		Body struct {
			Panels []intake.Snapshot `json:"panels"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-panels", Method: http.MethodGet, Path: "/api/v1/intake", Summary: "List intake panels", Tags: []string{"Intake"}},
		func(ctx context.Context, input *struct{}) (*listPanelsOutput, error) {
			panels, err := svc.ListPanels(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listPanelsOutput{}
			out.Body.Panels = panels
			if out.Body.Panels == nil {
				out.Body.Panels = []intake.Snapshot{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-panel", Method: http.MethodGet, Path: "/api/v1/intake/{id}", Summary: "Get intake panel state", Tags: []string{"Intake"}},
		func(ctx context.Context, input *panelIDInput) (*panelOutput, error) {
			snap, err := svc.GetPanel(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &panelOutput{Body: snap}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-panel", Method: http.MethodDelete, Path: "/api/v1/intake/{id}", Summary: "Tear down an intake panel", Tags: []string{"Intake"}},
		func(ctx context.Context, input *panelIDInput) (*statusOutput, error) {
			if err := svc.RemovePanel(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})

	actions := []struct {
		id, path, summary string
		fn                func(context.Context, string) (intake.Snapshot, error)
	}{
		{"toggle-panel", "toggle", "Open or close the panel", svc.TogglePanel},
		{"click-outside-panel", "outside", "Close the panel from an outside click", svc.ClickOutside},
		{"open-camera", "camera", "Switch the panel to camera mode", svc.OpenCamera},
		{"capture-frame", "capture", "Upload the current camera frame", svc.CaptureFrame},
	}
	for _, a := range actions {
		fn := a.fn
		huma.Register(api, huma.Operation{OperationID: a.id, Method: http.MethodPost, Path: "/api/v1/intake/{id}/" + a.path, Summary: a.summary, Tags: []string{"Intake"}},
			func(ctx context.Context, input *panelIDInput) (*panelOutput, error) {
				snap, err := fn(ctx, input.ID)
				if err != nil {
					return nil, mapErr(err)
				}
				return &panelOutput{Body: snap}, nil
			})
	}

	type linkInput struct {
		ID   string `path:"id" doc:"Intake panel ID"`
		Body struct {
			Text string `json:"text" doc:"Image link; must start with http:// or https://"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "paste-link", Method: http.MethodPost, Path: "/api/v1/intake/{id}/paste", Summary: "Upload a pasted image link", Tags: []string{"Intake"}},
		func(ctx context.Context, input *linkInput) (*panelOutput, error) {
			snap, err := svc.PasteLink(ctx, input.ID, input.Body.Text)
			if err != nil {
				return nil, mapErr(err)
			}
			return &panelOutput{Body: snap}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "submit-link", Method: http.MethodPost, Path: "/api/v1/intake/{id}/submit", Summary: "Upload an entered image link", Description: "Empty input is ignored.", Tags: []string{"Intake"}},
		func(ctx context.Context, input *linkInput) (*panelOutput, error) {
			snap, err := svc.SubmitLink(ctx, input.ID, input.Body.Text)
			if err != nil {
				return nil, mapErr(err)
			}
			return &panelOutput{Body: snap}, nil
		})
}

func registerAttachmentHandlers(api huma.API, svc Service) {
	type attachmentOutput struct {
		Body struct {
			Attachment bot.Attachment `json:"attachment"`
			ImageURL   string         `json:"image_url,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-attachment", Method: http.MethodGet, Path: "/api/v1/attachment", Summary: "Get the attachment staged for the next message", Tags: []string{"Attachment"}},
		func(ctx context.Context, input *struct{}) (*attachmentOutput, error) {
			att, err := svc.GetAttachment(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &attachmentOutput{}
			out.Body.Attachment = att
			if att.ImageID != "" {
				out.Body.ImageURL = "/api/v1/attachment/image"
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-attachment", Method: http.MethodDelete, Path: "/api/v1/attachment", Summary: "Drop the staged attachment", Tags: []string{"Attachment"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearAttachment(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "cleared"
			return out, nil
		})
}
