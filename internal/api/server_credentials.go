package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/bingo_bridge/internal/credential"
)

func registerCredentialHandlers(api huma.API, svc Service) {
	type parseOutput struct {
		Body credential.Result
	}
	huma.Register(api, huma.Operation{OperationID: "parse-credential", Method: http.MethodPost, Path: "/api/v1/credentials", Summary: "Parse and persist a captured challenge request", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Capture   string `json:"capture" required:"true" doc:"curl text of the challenge request, plain or base64 encoded"`
				ImageOnly bool   `json:"image_only,omitempty" doc:"Restrict the session to image creation"`
			}
		}) (*parseOutput, error) {
			res, err := svc.ParseCredential(ctx, input.Body.Capture, input.Body.ImageOnly)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &parseOutput{}
			out.Body = res
			return out, nil
		})

	type headersOutput struct {
		Body struct {
			Headers map[string]string `json:"headers"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-credential-headers", Method: http.MethodGet, Path: "/api/v1/credentials/headers", Summary: "Reconstruct the persisted header mapping", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *struct{}) (*headersOutput, error) {
			headers, err := svc.CredentialHeaders(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &headersOutput{}
			out.Body.Headers = headers
			if out.Body.Headers == nil {
				out.Body.Headers = map[string]string{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-credential", Method: http.MethodDelete, Path: "/api/v1/credentials", Summary: "Remove every persisted credential slot", Tags: []string{"Credentials"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearCredential(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "cleared"
			return out, nil
		})
}
