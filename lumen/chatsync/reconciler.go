// lumen/chatsync/reconciler.go
package chatsync

import (
	"context"
	"strings"

	"lumen/lumen/sources/psql/models"
	"lumen/lumen/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaveFunc persists one assistant message. The reconciler never retries
// on its own; a failed save is unmarked so a later Observe can pick the
// message up again.
type SaveFunc func(ctx context.Context, msg models.Message) error

// Reconciler keeps a streaming session's in-memory transcript consistent
// with the stored one. One instance per session, never shared: callers
// drive it from a single logical sequence of transcript updates, so no
// locking is needed. The synced set, not message content, decides whether
// a message has already been persisted.
type Reconciler struct {
	synced    map[uuid.UUID]struct{}
	watermark int
	save      SaveFunc
}

func NewReconciler(save SaveFunc) *Reconciler {
	return &Reconciler{
		synced: make(map[uuid.UUID]struct{}),
		save:   save,
	}
}

// Observe scans the transcript for assistant messages that have not been
// persisted yet. A transcript that has not grown past the watermark is
// skipped entirely. Assistant messages whose text parts concatenate to
// whitespace are left unmarked, since a later update may fill them in.
func (r *Reconciler) Observe(ctx context.Context, transcript []models.Message) error {
	if len(transcript) <= r.watermark {
		return nil
	}
	r.watermark = len(transcript)

	var firstErr error
	for _, msg := range transcript {
		if msg.Role != models.RoleAssistant {
			continue
		}
		if _, ok := r.synced[msg.ID]; ok {
			continue
		}
		if strings.TrimSpace(msg.TextContent()) == "" {
			continue
		}
		// Mark before issuing the save so a rescan cannot issue a second
		// save for the same id while this one is in flight.
		r.synced[msg.ID] = struct{}{}
		if err := r.save(ctx, msg); err != nil {
			delete(r.synced, msg.ID)
			logging.ErrorLogger.Error("assistant message save failed",
				zap.String("message_id", msg.ID.String()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// MarkSynced seeds ids already known to be persisted, e.g. a transcript
// loaded from the store at session start.
func (r *Reconciler) MarkSynced(ids ...uuid.UUID) {
	for _, id := range ids {
		r.synced[id] = struct{}{}
	}
}

// Synced reports whether a message id has been persisted this session.
func (r *Reconciler) Synced(id uuid.UUID) bool {
	_, ok := r.synced[id]
	return ok
}

// Forget drops ids from the synced set. Used when a trailing deletion
// removes persisted messages so a regenerated reply with a reused id is
// saved again.
func (r *Reconciler) Forget(ids ...uuid.UUID) {
	for _, id := range ids {
		delete(r.synced, id)
	}
	if len(ids) > 0 && r.watermark > 0 {
		// Transcript shrank; let the next update through.
		r.watermark = 0
	}
}
