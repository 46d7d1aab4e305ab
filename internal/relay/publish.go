package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/intake"
)

// NavigateEvent asks the front-end to load Href after DelayMS.
type NavigateEvent struct {
	Href    string `json:"href"`
	DelayMS int64  `json:"delay_ms"`
}

// Navigator publishes navigation requests on the navigate feed.
type Navigator struct {
	broker *Broker
}

func NewNavigator(broker *Broker) *Navigator {
	return &Navigator{broker: broker}
}

func (n *Navigator) Navigate(ctx context.Context, href string, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.broker.PublishJSON(FeedNavigate, NavigateEvent{Href: href, DelayMS: delay.Milliseconds()})
}

// PanelObserver returns an intake observer that publishes panel snapshots.
func PanelObserver(broker *Broker) func(intake.Snapshot) {
	return func(s intake.Snapshot) {
		if err := broker.PublishJSON(FeedPanel, s); err != nil {
			slog.Warn("Panel event publish failed", "panel_id", s.ID, "error", err)
		}
	}
}

// PumpState forwards app state changes to the broker until ctx ends.
func PumpState(ctx context.Context, store *appstate.Store, broker *Broker) {
	ch, cancel := store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			if err := broker.PublishJSON(FeedState, st); err != nil {
				slog.Warn("State event publish failed", "error", err)
			}
		}
	}
}
