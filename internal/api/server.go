package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/bot"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/intake"
	"github.com/dgnsrekt/bingo_bridge/internal/settings"
	"github.com/dgnsrekt/bingo_bridge/internal/storage"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// DefaultMaxUploadBytes caps raw file uploads.
const DefaultMaxUploadBytes = 20 << 20

type Service interface {
	ParseCredential(ctx context.Context, capture string, imageOnly bool) (credential.Result, error)
	CredentialHeaders(ctx context.Context) (map[string]string, error)
	ClearCredential(ctx context.Context) error
	SaveSettings(ctx context.Context, capture string, imageOnly bool) (settings.SaveResult, error)
	ToggleImageOnly(ctx context.Context, capture string, checked bool) (bool, error)
	SaveVoice(ctx context.Context, enabled bool) (appstate.State, error)
	Prefill(ctx context.Context) (string, error)
	EncodeHeader(ctx context.Context, capture string) (string, error)
	GetState(ctx context.Context) (appstate.State, error)
	OpenDialog(ctx context.Context, name string) (appstate.State, error)
	SetHistory(ctx context.Context, on bool) (appstate.State, error)
	CreatePanel(ctx context.Context) (intake.Snapshot, error)
	ListPanels(ctx context.Context) ([]intake.Snapshot, error)
	GetPanel(ctx context.Context, id string) (intake.Snapshot, error)
	RemovePanel(ctx context.Context, id string) error
	TogglePanel(ctx context.Context, id string) (intake.Snapshot, error)
	ClickOutside(ctx context.Context, id string) (intake.Snapshot, error)
	OpenCamera(ctx context.Context, id string) (intake.Snapshot, error)
	CaptureFrame(ctx context.Context, id string) (intake.Snapshot, error)
	PasteLink(ctx context.Context, id, text string) (intake.Snapshot, error)
	SubmitLink(ctx context.Context, id, text string) (intake.Snapshot, error)
	SelectFile(ctx context.Context, id, name string, r io.Reader) (intake.Snapshot, error)
	GetAttachment(ctx context.Context) (bot.Attachment, error)
	AttachmentImage(ctx context.Context) ([]byte, string, error)
	ClearAttachment(ctx context.Context) error
}

// Options are the optional pieces mounted next to the huma operations.
type Options struct {
	// Stores selects the credential store for each request.
	Stores storage.Provider
	// Events serves the SSE feed.
	Events http.Handler
	// CameraFeed accepts browser camera frames over a websocket.
	CameraFeed     http.Handler
	MaxUploadBytes int64
}

type panelIDInput struct {
	ID string `path:"id" doc:"Intake panel ID"`
}

type panelOutput struct {
	Body intake.Snapshot
}

type stateOutput struct {
	Body appstate.State
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func NewServer(svc Service, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	if opts.Stores != nil {
		router.Use(storeProvider(opts.Stores))
	}

	cfg := huma.DefaultConfig("Bingo Bridge API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	router.Post("/api/v1/intake/{id}/file", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxUploadBytes)
		name := r.URL.Query().Get("name")
		if name == "" {
			name = r.Header.Get("X-File-Name")
		}
		snap, err := svc.SelectFile(r.Context(), chi.URLParam(r, "id"), name, r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = types.NewError(types.CodeValidation, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit), err)
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	router.Get("/api/v1/attachment/image", func(w http.ResponseWriter, r *http.Request) {
		data, mime, err := svc.AttachmentImage(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(data); err != nil {
			slog.Debug("attachment image write failed", "error", err)
		}
	})

	if opts.Events != nil {
		router.Get("/api/v1/events", opts.Events.ServeHTTP)
	}
	if opts.CameraFeed != nil {
		router.Get("/api/v1/camera/feed", opts.CameraFeed.ServeHTTP)
	}

	registerCredentialHandlers(api, svc)
	registerSettingsHandlers(api, svc)
	registerStateHandlers(api, svc)
	registerIntakeHandlers(api, svc)
	registerAttachmentHandlers(api, svc)

	return router
}

func statusFor(code string) int {
	switch code {
	case types.CodeValidation, types.CodeMalformedCredential, types.CodeInvalidImageLink:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeRestrictedMode, types.CodePanelClosed, types.CodeStaleResult:
		return http.StatusConflict
	case types.CodeCompressionFailed:
		return http.StatusUnprocessableEntity
	case types.CodeUploadFailed, types.CodeCDPUnavailable:
		return http.StatusBadGateway
	case types.CodeDeviceUnavailable, types.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		status := statusFor(coded.Code)
		if status == http.StatusInternalServerError {
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
		return huma.NewError(status, coded.Message)
	}
	return huma.Error500InternalServerError(err.Error())
}

// writeError renders err in the same problem format huma uses.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(types.CodeOf(err))
	detail := err.Error()
	var coded *types.CodedError
	if errors.As(err, &coded) {
		detail = coded.Message
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(&huma.ErrorModel{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
	}); encErr != nil {
		slog.Debug("error response write failed", "error", encErr)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("json response write failed", "error", err)
	}
}
