package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *Store, userID int64, title string, priority Priority) *Task {
	t.Helper()
	tk := &Task{UserID: userID, Title: title, Priority: priority}
	if err := s.Create(context.Background(), tk); err != nil {
		t.Fatal(err)
	}
	return tk
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	created := mustCreate(t, s, 1, "Buy groceries", PriorityHigh)
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Buy groceries" || got.Priority != PriorityHigh || got.Completed {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), 12345)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, 1, "Call dad", PriorityHigh)
	done := mustCreate(t, s, 1, "Pay rent", PriorityMedium)
	mustCreate(t, s, 1, "Water plants", PriorityLow)
	mustCreate(t, s, 2, "Someone else's task", PriorityLow)

	completed := true
	if _, err := s.Patch(ctx, done.ID, Patch{Completed: &completed}); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, 1, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks for user 1, got %d", len(all))
	}

	pending, err := s.List(ctx, 1, Filter{Status: StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", len(pending))
	}

	high, err := s.List(ctx, 1, Filter{Priority: PriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) != 1 || high[0].Title != "Call dad" {
		t.Fatalf("priority filter failed: %+v", high)
	}

	search, err := s.List(ctx, 1, Filter{Search: "plants"})
	if err != nil {
		t.Fatal(err)
	}
	if len(search) != 1 || search[0].Title != "Water plants" {
		t.Fatalf("search filter failed: %+v", search)
	}
}

func TestFindByTitlePrefersExactMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, 1, "Call my father", PriorityMedium)
	mustCreate(t, s, 1, "Call my father tomorrow", PriorityMedium)

	matches, err := s.FindByTitle(ctx, 1, "call my father", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Title != "Call my father" {
		t.Fatalf("expected single exact match, got %+v", matches)
	}

	// Without an exact match, all substring matches come back.
	partial, err := s.FindByTitle(ctx, 1, "call my", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(partial) != 2 {
		t.Fatalf("expected 2 substring matches, got %d", len(partial))
	}
}

func TestPatchUpdatesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk := mustCreate(t, s, 1, "Draft report", PriorityLow)

	newTitle := "Draft quarterly report"
	prio := PriorityHigh
	tags := []string{"work", "writing"}
	updated, err := s.Patch(ctx, tk.ID, Patch{Title: &newTitle, Priority: &prio, Tags: &tags})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != newTitle || updated.Priority != PriorityHigh {
		t.Fatalf("patch not applied: %+v", updated)
	}

	got, err := s.Get(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Fatalf("tags not persisted: %+v", got.Tags)
	}
}

func TestDeleteRemovesTaskAndSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk := mustCreate(t, s, 1, "Plan trip", PriorityMedium)
	if err := s.AddSubtask(ctx, &Subtask{TaskID: tk.ID, UserID: 1, Title: "Book flights"}); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, tk.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	subs, err := s.Subtasks(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected subtasks removed, got %d", len(subs))
	}

	if err := s.Delete(ctx, tk.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk := mustCreate(t, s, 1, "Clean house", PriorityLow)
	for _, title := range []string{"Kitchen", "Bathroom", "Bedroom"} {
		if err := s.AddSubtask(ctx, &Subtask{TaskID: tk.ID, UserID: 1, Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	subs, err := s.Subtasks(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(subs))
	}
	if subs[0].Title != "Kitchen" || subs[2].Title != "Bedroom" {
		t.Fatalf("subtasks out of order: %+v", subs)
	}
}
