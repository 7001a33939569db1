package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/handiism/tubealbum/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	outcomes := []model.ItemOutcome{
		{
			Ref:     model.ItemRef{ID: "b", URL: "https://www.youtube.com/watch?v=b", Index: 2},
			Status:  model.StatusFailed,
			Stage:   model.StageTranscode,
			Err:     errors.New("ffmpeg exploded"),
			Elapsed: 1500 * time.Millisecond,
		},
		{
			Ref:    model.ItemRef{ID: "a", URL: "https://www.youtube.com/watch?v=a", Index: 1},
			Status: model.StatusSuccess,
			Path:   "/music/A.mp3",
			Title:  "A",
		},
	}

	first, err := store.RecordRun(ctx, Run{
		PlaylistURL: "https://www.youtube.com/playlist?list=PL1",
		Album:       "First",
		StartedAt:   start,
		FinishedAt:  start.Add(time.Minute),
		Total:       2,
		Succeeded:   1,
		Failed:      1,
	}, outcomes)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if first == "" {
		t.Fatal("expected a generated run id")
	}

	second, err := store.RecordRun(ctx, Run{
		PlaylistURL: "https://www.youtube.com/playlist?list=PL2",
		StartedAt:   start.Add(time.Hour),
		FatalError:  "extract failed",
	}, nil)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("runs not newest first: %+v", runs)
	}
	if !runs[1].StartedAt.Equal(start) || runs[1].Album != "First" || runs[1].Failed != 1 {
		t.Errorf("unexpected run %+v", runs[1])
	}
	if runs[0].FatalError != "extract failed" {
		t.Errorf("FatalError = %q", runs[0].FatalError)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns(1) = %d runs, err %v", len(limited), err)
	}

	items, err := store.Items(ctx, first)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ItemID != "a" || items[0].Status != "success" || items[0].Path != "/music/A.mp3" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Stage != "transcode" || items[1].Reason == "" || items[1].Elapsed != 1500*time.Millisecond {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestFindRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc123", "abd456"} {
		if _, err := store.RecordRun(ctx, Run{ID: id, PlaylistURL: "u", StartedAt: time.Now()}, nil); err != nil {
			t.Fatal(err)
		}
	}

	run, err := store.FindRun(ctx, "abc")
	if err != nil || run.ID != "abc123" {
		t.Errorf("FindRun(abc) = %+v, %v", run, err)
	}
	if _, err := store.FindRun(ctx, "ab"); err == nil {
		t.Error("ambiguous prefix should fail")
	}
	if _, err := store.FindRun(ctx, "zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FindRun(zzz) error = %v, want ErrRunNotFound", err)
	}
}

func TestOpenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.RecordRun(context.Background(), Run{PlaylistURL: "u", StartedAt: time.Now()}, nil); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Errorf("ListRuns after reopen = %d, %v", len(runs), err)
	}
}
