package core

// State is the full in-memory application state held by the container.
// Count and Comments are the persisted subset; Loading, Error and
// IsHydrated never reach durable storage.
type State struct {
	Count    int64
	Comments []Comment
	// Loading is true only while a comments fetch is in flight.
	Loading bool
	// Error holds the message of the most recent failed fetch, empty otherwise.
	Error string
	// IsHydrated flips false->true once per process, when the restore
	// cycle has merged durable state in. Never reset afterwards.
	IsHydrated bool
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	s.Comments = CloneComments(s.Comments)
	return s
}
