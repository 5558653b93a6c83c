package llmroute

import "sync/atomic"

// BackendModel describes one backend model in a catalog snapshot.
// Immutable once published.
type BackendModel struct {
	ID              string
	Provider        string
	CostPer1KTokens float64
	MaxTokens       int
	Quality         QualityTier
	LatencyMS       int64
	Capabilities    []string
}

// HasCapability reports whether the model declares the given capability tag.
func (m BackendModel) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Snapshot is an immutable, ordered catalog of backend models.
type Snapshot struct {
	ids    []string
	models map[string]BackendModel
}

func newSnapshot(models []BackendModel) *Snapshot {
	s := &Snapshot{
		ids:    make([]string, 0, len(models)),
		models: make(map[string]BackendModel, len(models)),
	}
	for _, m := range models {
		if _, dup := s.models[m.ID]; dup {
			continue
		}
		s.ids = append(s.ids, m.ID)
		s.models[m.ID] = m
	}
	return s
}

// Get returns the model for id.
func (s *Snapshot) Get(id string) (BackendModel, bool) {
	m, ok := s.models[id]
	return m, ok
}

// IDs returns the catalog ids in publish order.
func (s *Snapshot) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of models in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

// WithCapability returns the ids of models declaring the given tag,
// in publish order. Useful for building a request's candidate list.
func (s *Snapshot) WithCapability(tag string) []string {
	var out []string
	for _, id := range s.ids {
		if s.models[id].HasCapability(tag) {
			out = append(out, id)
		}
	}
	return out
}

// Registry holds the active catalog snapshot. Publish swaps it atomically;
// readers that already captured a snapshot keep a consistent view.
type Registry struct {
	snap atomic.Pointer[Snapshot]
}

// NewRegistry creates a Registry with the given initial catalog.
func NewRegistry(models ...BackendModel) *Registry {
	r := &Registry{}
	r.snap.Store(newSnapshot(models))
	return r
}

// Snapshot returns the current catalog.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Publish atomically replaces the active catalog. In-flight requests that
// hold an older snapshot are unaffected.
func (r *Registry) Publish(models []BackendModel) {
	r.snap.Store(newSnapshot(models))
}
