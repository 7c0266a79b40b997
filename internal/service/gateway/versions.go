package gateway

import (
	"time"

	"modelgate/internal/domain/models"
)

// VersionRecorder maintains the append-only history of saved documents.
type VersionRecorder struct {
	now func() time.Time
}

// NewVersionRecorder creates a recorder using clock for timestamps.
func NewVersionRecorder(clock func() time.Time) *VersionRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &VersionRecorder{now: clock}
}

// Stamp prepares doc for a commit: timestamps are updated, the head revision
// marker is reset and a snapshot of the state about to be written is
// appended with sequence len(History).
func (r *VersionRecorder) Stamp(doc *models.Document) {
	now := r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version = nil
	doc.History = append(doc.History, doc.Snapshot(len(doc.History)))
}
