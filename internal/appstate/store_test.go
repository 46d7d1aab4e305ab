package appstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

func TestUpdateNotifiesOnChangeOnly(t *testing.T) {
	s := NewStore(State{History: true})
	ch, cancel := s.Subscribe()
	defer cancel()

	st := s.SetHistory(true)
	assert.Equal(t, uint64(0), st.Version)
	select {
	case <-ch:
		t.Fatal("no-op update should not notify")
	default:
	}

	st = s.SetDialog(DialogSettings)
	assert.Equal(t, uint64(1), st.Version)
	got := <-ch
	assert.Equal(t, DialogSettings, got.Dialog)
	assert.Equal(t, `#dialog="settings"`, got.Hash)

	assert.Empty(t, s.SetDialog(DialogNone).Hash)
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	s := NewStore(State{})
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetVoice(true)
	s.SetImageOnly(true)
	s.SetDialog(DialogVoice)

	got := <-ch
	assert.Equal(t, State{Dialog: DialogVoice, Hash: `#dialog="voice"`, Voice: true, ImageOnly: true, Version: 3}, got)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewStore(State{})
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	s.SetVoice(true)
}

func TestParseDialogHash(t *testing.T) {
	cases := map[string]Dialog{
		`#dialog="settings"`: DialogSettings,
		`#dialog="voice"`:    DialogVoice,
		`dialog=reset`:       DialogReset,
		`#dialog="bogus"`:    DialogNone,
		``:                   DialogNone,
		`#other=1`:           DialogNone,
	}
	for hash, want := range cases {
		assert.Equal(t, want, ParseDialogHash(hash), hash)
	}
	assert.Equal(t, DialogSettings, ParseDialogHash(DialogHash(DialogSettings)))
	assert.Equal(t, "", DialogHash(DialogNone))

	_, err := ParseDialog("bogus")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeValidation))
}
