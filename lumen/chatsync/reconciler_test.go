package chatsync

import (
	"context"
	"errors"
	"testing"

	"lumen/lumen/sources/psql/models"
	"lumen/lumen/utils/logging"

	"github.com/google/uuid"
)

func assistantMsg(id uuid.UUID, text string) models.Message {
	return models.Message{
		ID:    id,
		Role:  models.RoleAssistant,
		Parts: models.PartList{models.TextPart(text)},
	}
}

func countingSave(saves *[]uuid.UUID) SaveFunc {
	return func(ctx context.Context, msg models.Message) error {
		*saves = append(*saves, msg.ID)
		return nil
	}
}

func TestObserveSavesAssistantOnce(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	id := uuid.New()
	transcript := []models.Message{assistantMsg(id, "hello there")}
	if err := r.Observe(context.Background(), transcript); err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	// Rescan after growth must not save the same id again.
	transcript = append(transcript, assistantMsg(uuid.New(), "second"))
	if err := r.Observe(context.Background(), transcript); err != nil {
		t.Fatalf("observe failed: %v", err)
	}

	seen := map[uuid.UUID]int{}
	for _, s := range saves {
		seen[s]++
	}
	if seen[id] != 1 {
		t.Errorf("expected exactly one save for %s, got %d", id, seen[id])
	}
	if len(saves) != 2 {
		t.Errorf("expected 2 saves total, got %d", len(saves))
	}
}

func TestObserveSkipsWatermark(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	transcript := []models.Message{assistantMsg(uuid.New(), "hi")}
	r.Observe(context.Background(), transcript)
	// Same length: must not rescan.
	replaced := []models.Message{assistantMsg(uuid.New(), "different id, same length")}
	r.Observe(context.Background(), replaced)

	if len(saves) != 1 {
		t.Errorf("expected watermark to block rescan, got %d saves", len(saves))
	}
}

func TestObserveLeavesEmptyUnmarked(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	id := uuid.New()
	r.Observe(context.Background(), []models.Message{assistantMsg(id, "   \n")})
	if len(saves) != 0 {
		t.Fatalf("whitespace-only reply must not be saved")
	}
	if r.Synced(id) {
		t.Fatalf("whitespace-only reply must not be marked synced")
	}

	// A later update fills in the content; the same id now persists.
	r.Observe(context.Background(), []models.Message{
		assistantMsg(id, "now populated"),
		assistantMsg(uuid.New(), ""),
	})
	if len(saves) != 1 || saves[0] != id {
		t.Errorf("expected the filled-in message to be saved, got %v", saves)
	}
}

func TestObserveIgnoresUserMessages(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	user := models.Message{
		ID:    uuid.New(),
		Role:  models.RoleUser,
		Parts: models.PartList{models.TextPart("question")},
	}
	r.Observe(context.Background(), []models.Message{user})
	if len(saves) != 0 {
		t.Errorf("user messages are saved at submission time, not by the reconciler")
	}
}

func TestFailedSaveIsUnmarked(t *testing.T) {
	logging.InitLogger()
	calls := 0
	r := NewReconciler(func(ctx context.Context, msg models.Message) error {
		calls++
		if calls == 1 {
			return errors.New("store down")
		}
		return nil
	})

	id := uuid.New()
	transcript := []models.Message{assistantMsg(id, "reply")}
	if err := r.Observe(context.Background(), transcript); err == nil {
		t.Fatalf("expected first observe to surface the save error")
	}
	if r.Synced(id) {
		t.Fatalf("failed save must not stay marked")
	}

	transcript = append(transcript, assistantMsg(uuid.New(), "more"))
	if err := r.Observe(context.Background(), transcript); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !r.Synced(id) {
		t.Errorf("expected retry to persist and mark the message")
	}
}

func TestMarkSyncedSkipsLoadedHistory(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	loaded := assistantMsg(uuid.New(), "from a previous session")
	r.MarkSynced(loaded.ID)

	fresh := assistantMsg(uuid.New(), "new this session")
	r.Observe(context.Background(), []models.Message{loaded, fresh})

	if len(saves) != 1 || saves[0] != fresh.ID {
		t.Errorf("expected only the fresh message to be saved, got %v", saves)
	}
}

func TestForgetAllowsResave(t *testing.T) {
	logging.InitLogger()
	var saves []uuid.UUID
	r := NewReconciler(countingSave(&saves))

	id := uuid.New()
	transcript := []models.Message{assistantMsg(id, "v1")}
	r.Observe(context.Background(), transcript)

	// Regenerate reuses the id after a trailing delete.
	r.Forget(id)
	r.Observe(context.Background(), []models.Message{assistantMsg(id, "v2")})

	if len(saves) != 2 {
		t.Errorf("expected forget to permit a second save, got %d", len(saves))
	}
}
