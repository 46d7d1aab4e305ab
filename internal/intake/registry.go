package intake

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// Registry owns the panels of every connected client and tears down panels
// that have been idle longer than the configured TTL.
type Registry struct {
	deps     Deps
	idleTTL  time.Duration
	onChange func(Snapshot)

	mu     sync.RWMutex
	panels map[string]*Panel

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewRegistry starts the idle sweep. sweepEvery <= 0 disables it.
func NewRegistry(deps Deps, idleTTL, sweepEvery time.Duration, onChange func(Snapshot)) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Registry{
		deps:     deps,
		idleTTL:  idleTTL,
		onChange: onChange,
		panels:   make(map[string]*Panel),
		done:     make(chan struct{}),
	}
	if sweepEvery > 0 && idleTTL > 0 {
		r.wg.Add(1)
		go r.sweepLoop(sweepEvery)
	}
	return r
}

// Create registers a new closed panel.
func (r *Registry) Create() *Panel {
	p := NewPanel(uuid.NewString(), r.deps)
	if r.onChange != nil {
		p.OnChange(r.onChange)
	}
	r.mu.Lock()
	r.panels[p.ID()] = p
	r.mu.Unlock()
	slog.Info("Intake panel created", "panel_id", p.ID())
	return p
}

// Get returns the panel with id.
func (r *Registry) Get(id string) (*Panel, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, types.NewError(types.CodeValidation, "invalid panel id", err)
	}
	r.mu.RLock()
	p, ok := r.panels[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.CodeNotFound, "panel not found: "+id, nil)
	}
	return p, nil
}

// Remove tears down and forgets a panel.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	p, ok := r.panels[id]
	delete(r.panels, id)
	r.mu.Unlock()
	if !ok {
		return types.NewError(types.CodeNotFound, "panel not found: "+id, nil)
	}
	p.Close()
	slog.Info("Intake panel removed", "panel_id", id)
	return nil
}

// List returns snapshots of every panel.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	panels := make([]*Panel, 0, len(r.panels))
	for _, p := range r.panels {
		panels = append(panels, p)
	}
	r.mu.RUnlock()
	out := make([]Snapshot, 0, len(panels))
	for _, p := range panels {
		out = append(out, p.Snapshot())
	}
	return out
}

// Len returns the number of live panels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}

// Close stops the sweeper and tears down every panel.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		panels := r.panels
		r.panels = make(map[string]*Panel)
		r.mu.Unlock()
		for _, p := range panels {
			p.Close()
		}
	})
}

func (r *Registry) sweepLoop(every time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweep() {
	cutoff := r.deps.Now().Add(-r.idleTTL)
	var stale []*Panel
	r.mu.Lock()
	for id, p := range r.panels {
		if p.UpdatedAt().Before(cutoff) {
			stale = append(stale, p)
			delete(r.panels, id)
		}
	}
	r.mu.Unlock()
	for _, p := range stale {
		p.Close()
	}
	if len(stale) > 0 {
		slog.Info("Swept idle intake panels", "count", len(stale))
	}
}
