package workshop

import "sync"

// Dimensions is the rendered (on-screen) size of one image and whether its
// bitmap finished loading.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Loaded bool    `json:"loaded"`
}

// Tracker holds per-image load state keyed by image index. It is written by
// load/error events and read by the scale mapper and the batch wait.
type Tracker struct {
	mu     sync.RWMutex
	states map[int]Dimensions
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[int]Dimensions)}
}

// MarkLoaded records that image index finished loading at the given size.
func (t *Tracker) MarkLoaded(index int, width, height float64) {
	t.mu.Lock()
	t.states[index] = Dimensions{Width: width, Height: height, Loaded: true}
	t.mu.Unlock()
}

// MarkFailed records a load error. The image stays out of the loaded set.
func (t *Tracker) MarkFailed(index int) {
	t.mu.Lock()
	t.states[index] = Dimensions{}
	t.mu.Unlock()
}

// State returns the recorded dimensions for index.
func (t *Tracker) State(index int) (Dimensions, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.states[index]
	return d, ok
}

// LoadedCount is the number of images currently marked loaded.
func (t *Tracker) LoadedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, d := range t.states {
		if d.Loaded {
			n++
		}
	}
	return n
}

// AllLoaded reports whether images 0..n-1 are all marked loaded.
func (t *Tracker) AllLoaded(n int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 0; i < n; i++ {
		if !t.states[i].Loaded {
			return false
		}
	}
	return true
}

// Reset forgets every recorded state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.states = make(map[int]Dimensions)
	t.mu.Unlock()
}
