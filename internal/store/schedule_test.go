package store

import (
	"slices"
	"testing"

	"github.com/dukerupert/eventpilot/internal/model"
)

func TestScheduleAppendKeepsOrder(t *testing.T) {
	f := setupFixture(t)

	first := model.Reference{ID: "e1", Name: "First"}
	second := model.Reference{ID: "e2", Name: "Second"}

	refs, err := f.schedule.Append(f.alice.ID, "2026-02-10", first)
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("len = %d, want 1", len(refs))
	}

	refs, err = f.schedule.Append(f.alice.ID, "2026-02-10", second)
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if !slices.Equal(refs, []model.Reference{first, second}) {
		t.Errorf("refs = %v, want [%v %v]", refs, first, second)
	}

	other, err := f.schedule.ForDay(f.alice.ID, "2026-02-11")
	if err != nil {
		t.Fatalf("for day: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other day = %v, want empty", other)
	}
}

func TestScheduleByDate(t *testing.T) {
	f := setupFixture(t)

	f.schedule.Append(f.alice.ID, "2026-02-10", model.Reference{ID: "e1", Name: "One"})
	f.schedule.Append(f.alice.ID, "2026-02-11", model.Reference{ID: "e2", Name: "Two"})
	f.schedule.Append(f.alice.ID, "2026-02-10", model.Reference{ID: "e3", Name: "Three"})
	f.schedule.Append(f.bob.ID, "2026-02-10", model.Reference{ID: "e4", Name: "Four"})

	byDate, err := f.schedule.ByDate(f.alice.ID)
	if err != nil {
		t.Fatalf("by date: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("days = %d, want 2", len(byDate))
	}
	if got := byDate["2026-02-10"]; len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e3" {
		t.Errorf("2026-02-10 = %v, want [e1 e3]", got)
	}
	if got := byDate["2026-02-11"]; len(got) != 1 || got[0].ID != "e2" {
		t.Errorf("2026-02-11 = %v, want [e2]", got)
	}
}

func TestScheduleEventIDsForUsers(t *testing.T) {
	f := setupFixture(t)

	f.schedule.Append(f.alice.ID, "2026-02-10", model.Reference{ID: "shared", Name: "Shared"})
	f.schedule.Append(f.bob.ID, "2026-02-10", model.Reference{ID: "shared", Name: "Shared"})
	f.schedule.Append(f.bob.ID, "2026-02-10", model.Reference{ID: "bob-only", Name: "Bob"})
	f.schedule.Append(f.alice.ID, "2026-02-11", model.Reference{ID: "next-day", Name: "Later"})

	ids, err := f.schedule.EventIDsForUsers([]string{f.alice.ID, f.bob.ID}, "2026-02-10")
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if want := []string{"bob-only", "shared"}; !slices.Equal(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	ids, err = f.schedule.EventIDsForUsers(nil, "2026-02-10")
	if err != nil {
		t.Fatalf("event ids for nobody: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}

func TestSchedulePruneOrphans(t *testing.T) {
	f := setupFixture(t)

	event, err := f.events.Create(meeting("Kept", f.alice, 9, 10), []string{f.alice.ID})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	f.schedule.Append(f.alice.ID, "2026-02-10", model.Reference{ID: "gone", Name: "Gone"})

	n, err := f.schedule.PruneOrphans()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	refs, _ := f.schedule.ForDay(f.alice.ID, "2026-02-10")
	if len(refs) != 1 || refs[0].ID != event.ID {
		t.Errorf("refs = %v, want [%s]", refs, event.ID)
	}
}

func TestScheduleOrganizerDeleteLeavesOrphans(t *testing.T) {
	f := setupFixture(t)

	if _, err := f.events.Create(meeting("Sync", f.alice, 9, 10, f.bob), []string{f.alice.ID, f.bob.ID}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := f.users.Delete(f.alice.ID); err != nil {
		t.Fatalf("delete organizer: %v", err)
	}

	n, err := f.schedule.PruneOrphans()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	refs, _ := f.schedule.ForDay(f.bob.ID, "2026-02-10")
	if len(refs) != 0 {
		t.Errorf("bob's schedule = %v, want empty", refs)
	}
}
