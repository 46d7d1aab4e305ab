package settings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// DefaultReloadDelay is how long the front-end waits before reloading after
// a save.
const DefaultReloadDelay = 2 * time.Second

// Navigator asks the front-end to load a new location.
type Navigator interface {
	Navigate(ctx context.Context, href string, delay time.Duration) error
}

// SaveResult reports what Save persisted.
type SaveResult struct {
	Cleared   bool     `json:"cleared"`
	Domain    string   `json:"domain,omitempty"`
	ImageOnly bool     `json:"image_only"`
	Keys      []string `json:"keys,omitempty"`
}

// Service backs the settings and voice dialogs.
type Service struct {
	codec       *credential.Codec
	state       *appstate.Store
	nav         Navigator
	reloadDelay time.Duration
}

func NewService(codec *credential.Codec, state *appstate.Store, nav Navigator, reloadDelay time.Duration) *Service {
	if reloadDelay < 0 {
		reloadDelay = DefaultReloadDelay
	}
	return &Service{codec: codec, state: state, nav: nav, reloadDelay: reloadDelay}
}

// Save persists the credential in text, or clears it when text is empty.
// An empty credential forces image-only mode.
func (s *Service) Save(ctx context.Context, text string, imageOnly bool) (SaveResult, error) {
	var res SaveResult
	if strings.TrimSpace(text) == "" {
		if err := s.codec.Clear(ctx); err != nil {
			return SaveResult{}, err
		}
		if err := s.codec.SetImageOnly(ctx, true); err != nil {
			return SaveResult{}, err
		}
		res = SaveResult{Cleared: true, ImageOnly: true}
	} else {
		parsed, err := s.codec.Parse(ctx, credential.DecodeCapture(text), imageOnly)
		if err != nil {
			return SaveResult{}, err
		}
		res = SaveResult{Domain: parsed.Domain, ImageOnly: parsed.ImageOnly, Keys: parsed.Keys}
	}

	s.state.Update(func(st *appstate.State) {
		st.ImageOnly = res.ImageOnly
		st.Dialog = appstate.DialogNone
	})
	s.reload(ctx)
	slog.Info("Settings saved", "cleared", res.Cleared, "domain", res.Domain, "image_only", res.ImageOnly)
	return res, nil
}

// ToggleImageOnly checks whether the image-only switch may move to checked
// for the credential in text and returns the accepted value.
func (s *Service) ToggleImageOnly(ctx context.Context, text string, checked bool) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, types.NewError(types.CodeValidation, "configure user information first", nil)
	}
	capture, err := credential.Validate(credential.DecodeCapture(text))
	if err != nil {
		return false, err
	}
	if capture.Domain == credential.DomainCN && !checked {
		return true, types.NewError(types.CodeRestrictedMode, "cn.bing.com only supports image creation", nil)
	}
	s.state.SetImageOnly(checked)
	return checked, nil
}

// EncodeHeader returns the BING_HEADER form of text. Already encoded input
// is normalized first.
func (s *Service) EncodeHeader(text string) string {
	return credential.EncodeHeader(credential.DecodeCapture(strings.TrimSpace(text)))
}

// Prefill returns the persisted credential as curl text.
func (s *Service) Prefill(ctx context.Context) (string, error) {
	return s.codec.Prefill(ctx)
}

// SaveVoice stores the voice toggle and closes the dialog.
func (s *Service) SaveVoice(ctx context.Context, enabled bool) appstate.State {
	st := s.state.Update(func(st *appstate.State) {
		st.Voice = enabled
		st.Dialog = appstate.DialogNone
	})
	s.reload(ctx)
	return st
}

// SetHistory toggles conversation history.
func (s *Service) SetHistory(on bool) appstate.State {
	return s.state.SetHistory(on)
}

// OpenDialog shows a dialog in the front-end.
func (s *Service) OpenDialog(name string) (appstate.State, error) {
	d, err := appstate.ParseDialog(name)
	if err != nil {
		return appstate.State{}, err
	}
	return s.state.SetDialog(d), nil
}

// State returns the current UI state.
func (s *Service) State() appstate.State {
	return s.state.Snapshot()
}

func (s *Service) reload(ctx context.Context) {
	if s.nav == nil {
		return
	}
	if err := s.nav.Navigate(ctx, "./", s.reloadDelay); err != nil {
		slog.Warn("Reload request failed", "error", err)
	}
}
