package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/epic1st/contestcore/internal/domain"
)

// fakeStore is an in-memory Store double for exercising Manager without a
// database.
type fakeStore struct {
	saved   []*Intent
	saveErr error
}

func (f *fakeStore) Save(ctx context.Context, intent *Intent) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, intent)
	return nil
}
func (f *fakeStore) MarkAcked(ctx context.Context, intentID int64) error { return nil }
func (f *fakeStore) ListUnacked(ctx context.Context, limit int) ([]*Intent, error) {
	return f.saved, nil
}

func TestManagerEmitSavesIntentWithGivenFields(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	contestID := int64(42)

	err := m.Emit(context.Background(), "user-1", &contestID, domain.EventPositionClosed, "Position closed", "EURUSD closed", map[string]any{"positionId": int64(7)})
	if err != nil {
		t.Fatalf("Emit() returned error: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("store.saved has %d entries, want 1", len(store.saved))
	}
	got := store.saved[0]
	if got.UserID != "user-1" || got.Title != "Position closed" || got.Body != "EURUSD closed" {
		t.Fatalf("saved intent = %+v, fields don't match what was emitted", got)
	}
	if got.ContestID == nil || *got.ContestID != 42 {
		t.Fatalf("saved intent ContestID = %v, want pointer to 42", got.ContestID)
	}
}

func TestManagerEmitPropagatesStoreError(t *testing.T) {
	wantErr := errors.New("database is down")
	store := &fakeStore{saveErr: wantErr}
	m := NewManager(store)

	err := m.Emit(context.Background(), "user-1", nil, domain.EventContestJoined, "t", "b", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Emit() error = %v, want %v", err, wantErr)
	}
}
