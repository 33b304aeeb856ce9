package generation

import (
	"encoding/json"
	"sync"
	"time"
)

// TranscriptEntry is one call to the model, kept for auditing failed or odd plans.
type TranscriptEntry struct {
	Stage     string          `json:"stage"`
	Attempt   int             `json:"attempt"`
	Prompt    string          `json:"prompt"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Outcome   string          `json:"outcome"`
	Detail    []string        `json:"detail,omitempty"`
	At        time.Time       `json:"at"`
}

// Transcript collects every model exchange of a job.
type Transcript struct {
	mu      sync.Mutex
	Entries []TranscriptEntry `json:"entries"`
}

func (t *Transcript) add(e TranscriptEntry) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, e)
}

// Len is the number of recorded exchanges.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Entries)
}

// MarshalJSON snapshots the entries under the lock.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(struct {
		Entries []TranscriptEntry `json:"entries"`
	}{t.Entries})
}
