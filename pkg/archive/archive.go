// Package archive keeps transcripts of finished calls.
//
// Archiving is best-effort: a failed save is logged by the caller and never
// affects the call.
package archive

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/haivivi/voicebridge/pkg/conversation"
)

// ErrNotFound is returned by Get for unknown call ids.
var ErrNotFound = errors.New("archive: not found")

// Record is the transcript of one call.
type Record struct {
	CallID    string              `json:"call_id" msgpack:"call_id" yaml:"call_id"`
	Caller    string              `json:"caller,omitempty" msgpack:"caller,omitempty" yaml:"caller,omitempty"`
	Reason    string              `json:"reason" msgpack:"reason" yaml:"reason"`
	StartedAt time.Time           `json:"started_at" msgpack:"started_at" yaml:"started_at"`
	EndedAt   time.Time           `json:"ended_at" msgpack:"ended_at" yaml:"ended_at"`
	Turns     []conversation.Turn `json:"turns" msgpack:"turns" yaml:"turns"`
	Context   map[string]string   `json:"context,omitempty" msgpack:"context,omitempty" yaml:"context,omitempty"`
}

// FromSession builds a record from a dropped session.
func FromSession(s conversation.Session, reason string, ended time.Time) Record {
	return Record{
		CallID:    s.CallID,
		Reason:    reason,
		StartedAt: s.StartedAt,
		EndedAt:   ended,
		Turns:     s.Turns,
		Context:   s.Context,
	}
}

// Duration is the time between session creation and the end of the call.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Archive stores records keyed by call id. Saving a record for an existing
// call id replaces it.
type Archive interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, callID string) (Record, error)
	// List returns up to limit records, most recently ended first.
	// limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

func newestFirst(recs []Record, limit int) []Record {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].EndedAt.Equal(recs[j].EndedAt) {
			return recs[i].CallID < recs[j].CallID
		}
		return recs[i].EndedAt.After(recs[j].EndedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
