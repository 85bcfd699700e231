package workshop

import (
	"context"
	"sync"
)

// Session is one loaded composition together with its load-state tracker.
type Session struct {
	Composition *Composition
	Tracker     *Tracker
	mapper      *ScaleMapper
}

func NewSession(c *Composition) *Session {
	t := NewTracker()
	return &Session{
		Composition: c,
		Tracker:     t,
		mapper:      NewScaleMapper(c.Images, t),
	}
}

// Mapper exposes the session's scale mapper.
func (s *Session) Mapper() *ScaleMapper {
	return s.mapper
}

// Layout returns the live display list for image index.
func (s *Session) Layout(index int, v Viewer) ([]Element, error) {
	if _, err := s.Composition.Image(index); err != nil {
		return nil, err
	}
	if d, ok := s.Tracker.State(index); !ok || !d.Loaded {
		return nil, ErrNotLoaded
	}
	return s.mapper.LayoutImage(index, v), nil
}

// ImageState pairs an index with its tracked state.
type ImageState struct {
	Index int `json:"index"`
	Dimensions
}

// States lists the tracked state of every image in order.
func (s *Session) States() []ImageState {
	out := make([]ImageState, s.Composition.ImageCount())
	for i := range out {
		d, _ := s.Tracker.State(i)
		out[i] = ImageState{Index: i, Dimensions: d}
	}
	return out
}

// Registry keeps one session per composition id. Failed loads are not
// cached, so the next request tries again.
type Registry struct {
	loader Loader

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader, sessions: make(map[string]*Session)}
}

// Session returns the session for id, loading the composition on first use.
func (r *Registry) Session(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	comp, err := r.loader.FetchComposition(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}
	s = NewSession(comp)
	r.sessions[id] = s
	return s, nil
}

// Drop forgets the session for id.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
