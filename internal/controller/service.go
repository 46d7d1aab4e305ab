package controller

import (
	"context"
	"io"
	"strings"

	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/bot"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/intake"
	"github.com/dgnsrekt/bingo_bridge/internal/settings"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// Service wires the credential codec, settings surface, intake panels and
// the chat session behind one API-facing type.
type Service struct {
	codec    *credential.Codec
	settings *settings.Service
	panels   *intake.Registry
	session  *bot.Session
}

func NewService(codec *credential.Codec, st *settings.Service, panels *intake.Registry, session *bot.Session) *Service {
	return &Service{codec: codec, settings: st, panels: panels, session: session}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return types.NewError(types.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// --- credentials ---

func (s *Service) ParseCredential(ctx context.Context, capture string, imageOnly bool) (credential.Result, error) {
	if err := s.requireNonEmpty(capture, "capture"); err != nil {
		return credential.Result{}, err
	}
	return s.codec.Parse(ctx, credential.DecodeCapture(capture), imageOnly)
}

func (s *Service) CredentialHeaders(ctx context.Context) (map[string]string, error) {
	return s.codec.Reconstruct(ctx)
}

func (s *Service) ClearCredential(ctx context.Context) error {
	return s.codec.Clear(ctx)
}

// --- settings ---

func (s *Service) SaveSettings(ctx context.Context, capture string, imageOnly bool) (settings.SaveResult, error) {
	return s.settings.Save(ctx, capture, imageOnly)
}

func (s *Service) ToggleImageOnly(ctx context.Context, capture string, checked bool) (bool, error) {
	return s.settings.ToggleImageOnly(ctx, capture, checked)
}

func (s *Service) SaveVoice(ctx context.Context, enabled bool) (appstate.State, error) {
	return s.settings.SaveVoice(ctx, enabled), nil
}

func (s *Service) Prefill(ctx context.Context) (string, error) {
	return s.settings.Prefill(ctx)
}

func (s *Service) EncodeHeader(ctx context.Context, capture string) (string, error) {
	if err := s.requireNonEmpty(capture, "capture"); err != nil {
		return "", err
	}
	return s.settings.EncodeHeader(capture), nil
}

// --- state ---

func (s *Service) GetState(ctx context.Context) (appstate.State, error) {
	return s.settings.State(), nil
}

func (s *Service) OpenDialog(ctx context.Context, name string) (appstate.State, error) {
	return s.settings.OpenDialog(name)
}

func (s *Service) SetHistory(ctx context.Context, on bool) (appstate.State, error) {
	return s.settings.SetHistory(on), nil
}

// --- intake ---

func (s *Service) CreatePanel(ctx context.Context) (intake.Snapshot, error) {
	return s.panels.Create().Snapshot(), nil
}

func (s *Service) ListPanels(ctx context.Context) ([]intake.Snapshot, error) {
	return s.panels.List(), nil
}

func (s *Service) GetPanel(ctx context.Context, id string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.Snapshot(), nil
}

func (s *Service) RemovePanel(ctx context.Context, id string) error {
	return s.panels.Remove(id)
}

func (s *Service) TogglePanel(ctx context.Context, id string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.Toggle()
}

func (s *Service) ClickOutside(ctx context.Context, id string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.ClickOutside(), nil
}

func (s *Service) OpenCamera(ctx context.Context, id string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.OpenCamera(ctx)
}

func (s *Service) CaptureFrame(ctx context.Context, id string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.Capture(ctx)
}

func (s *Service) PasteLink(ctx context.Context, id, text string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.Paste(ctx, text)
}

func (s *Service) SubmitLink(ctx context.Context, id, text string) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.Submit(ctx, text)
}

func (s *Service) SelectFile(ctx context.Context, id, name string, r io.Reader) (intake.Snapshot, error) {
	p, err := s.panels.Get(id)
	if err != nil {
		return intake.Snapshot{}, err
	}
	return p.SelectFile(ctx, name, r)
}

// --- attachment ---

func (s *Service) GetAttachment(ctx context.Context) (bot.Attachment, error) {
	att, ok := s.session.Current()
	if !ok {
		return bot.Attachment{}, types.NewError(types.CodeNotFound, "no staged attachment", nil)
	}
	return att, nil
}

func (s *Service) AttachmentImage(ctx context.Context) ([]byte, string, error) {
	data, att, err := s.session.Image()
	if err != nil {
		return nil, "", err
	}
	return data, att.MIME, nil
}

func (s *Service) ClearAttachment(ctx context.Context) error {
	s.session.Clear()
	return nil
}
