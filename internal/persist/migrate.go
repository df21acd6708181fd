package persist

import (
	"encoding/json"
	"fmt"
)

// Migration transforms persisted state from one schema version to the
// next. Pure data-to-data; no side effects.
type Migration func(state json.RawMessage) (json.RawMessage, error)

// migrations maps a source version to the step that produces version+1.
// A version with no entry has no path to the current schema and the
// slot is discarded.
var migrations = map[int]Migration{
	1: migrateV1,
}

// migrateV1 upgrades the v1 shape, which persisted only the counter.
func migrateV1(state json.RawMessage) (json.RawMessage, error) {
	old := struct {
		Count int64 `json:"count"`
	}{}
	if err := json.Unmarshal(state, &old); err != nil {
		return nil, fmt.Errorf("decode v1 state: %w", err)
	}
	next, err := json.Marshal(Snapshot{Count: old.Count})
	if err != nil {
		return nil, fmt.Errorf("encode v2 state: %w", err)
	}
	return next, nil
}
