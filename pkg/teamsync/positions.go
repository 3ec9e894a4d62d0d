package teamsync

import (
	"sort"
	"sync"
)

// PositionRegistry holds the latest position reported by each client.
// The zero value is not usable; construct with NewPositionRegistry.
type PositionRegistry struct {
	mu      sync.RWMutex
	records map[string]PositionRecord
}

// NewPositionRegistry creates an empty registry
func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		records: make(map[string]PositionRecord),
	}
}

// Upsert validates a report and replaces whatever is stored for its client.
// There is no timestamp comparison: a report carrying an older ReportedAt
// still overwrites a newer one if it arrives later.
func (r *PositionRegistry) Upsert(in PositionInput) (PositionAck, error) {
	record, err := ValidatePosition(in)
	if err != nil {
		return PositionAck{}, err
	}

	r.mu.Lock()
	r.records[record.ClientID] = record
	r.mu.Unlock()

	return PositionAck{ClientID: record.ClientID}, nil
}

// Snapshot returns a copy of every record, ordered by client ID
func (r *PositionRegistry) Snapshot() []PositionRecord {
	r.mu.RLock()
	out := make([]PositionRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ClientID < out[j].ClientID
	})
	return out
}

// Len returns the number of clients with a stored position
func (r *PositionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
