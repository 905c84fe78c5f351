package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind names the snapshot operation an event reports.
type EventKind string

const (
	KindExport     EventKind = "export"
	KindExportUser EventKind = "export_user"
	KindImport     EventKind = "import"
	KindImportUser EventKind = "import_user"
)

// SnapshotEvent is published after a snapshot operation commits. It carries
// counts only; consumers read current data from the store.
type SnapshotEvent struct {
	ID         uuid.UUID `json:"id"`
	Kind       EventKind `json:"kind"`
	Usernames  []string  `json:"usernames"`
	Users      int       `json:"users"`
	Categories int       `json:"categories"`
	Expenses   int       `json:"expenses"`
	Skipped    int       `json:"skipped"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSnapshotEvent(kind EventKind, usernames ...string) *SnapshotEvent {
	if usernames == nil {
		usernames = []string{}
	}
	return &SnapshotEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Usernames: usernames,
		Timestamp: time.Now().UTC(),
	}
}

// ChangesExpenses reports whether the operation rewrote expenses of the
// named users.
func (e *SnapshotEvent) ChangesExpenses() bool {
	return e.Kind == KindImport || e.Kind == KindImportUser
}

func (e *SnapshotEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func SnapshotEventFromJSON(data []byte) (*SnapshotEvent, error) {
	var ev SnapshotEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
