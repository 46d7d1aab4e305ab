package appstate

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// Dialog is the dialog currently shown by the front-end.
type Dialog string

const (
	DialogNone     Dialog = ""
	DialogSettings Dialog = "settings"
	DialogVoice    Dialog = "voice"
	DialogReset    Dialog = "reset"
)

// State is the UI state shared between the settings surface and the chat
// front-end.
type State struct {
	Dialog    Dialog `json:"dialog"`
	Hash      string `json:"hash"`
	History   bool   `json:"history"`
	Voice     bool   `json:"voice"`
	ImageOnly bool   `json:"image_only"`
	Version   uint64 `json:"version"`
}

// Store guards State and fans out changes to subscribers.
type Store struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]chan State
}

func NewStore(initial State) *Store {
	initial.Hash = DialogHash(initial.Dialog)
	return &Store{state: initial, subs: make(map[int]chan State)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn and notifies subscribers when anything changed.
func (s *Store) Update(fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	next.Hash = DialogHash(next.Dialog)
	next.Version = s.state.Version
	if next == s.state {
		return s.state
	}
	next.Version++
	s.state = next
	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			// Slow subscriber: replace the stale value with the newest.
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
	return next
}

// Subscribe returns a channel receiving the latest state after each change
// and a func that unsubscribes.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) SetDialog(d Dialog) State {
	return s.Update(func(st *State) { st.Dialog = d })
}

func (s *Store) SetHistory(on bool) State {
	return s.Update(func(st *State) { st.History = on })
}

func (s *Store) SetVoice(on bool) State {
	return s.Update(func(st *State) { st.Voice = on })
}

func (s *Store) SetImageOnly(on bool) State {
	return s.Update(func(st *State) { st.ImageOnly = on })
}

// ParseDialog validates a dialog name.
func ParseDialog(name string) (Dialog, error) {
	switch d := Dialog(strings.TrimSpace(name)); d {
	case DialogNone, DialogSettings, DialogVoice, DialogReset:
		return d, nil
	default:
		return DialogNone, types.NewError(types.CodeValidation, "unknown dialog "+strconv.Quote(name), nil)
	}
}

// ParseDialogHash reads the dialog from a location hash such as
// `#dialog="settings"`. Unknown or absent dialogs yield DialogNone.
func ParseDialogHash(hash string) Dialog {
	hash = strings.TrimPrefix(strings.TrimSpace(hash), "#")
	if hash == "" {
		return DialogNone
	}
	values, err := url.ParseQuery(hash)
	if err != nil {
		return DialogNone
	}
	raw := values.Get("dialog")
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	d, err := ParseDialog(raw)
	if err != nil {
		return DialogNone
	}
	return d
}

// DialogHash renders d as a location hash.
func DialogHash(d Dialog) string {
	if d == DialogNone {
		return ""
	}
	return "#dialog=" + strconv.Quote(string(d))
}
