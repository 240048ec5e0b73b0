package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonbot/internal/storage"
	logx "salonbot/pkg/logx"
)

func openTestStore(t *testing.T) (*Store, storage.Store) {
	t.Helper()
	blob, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = blob.Close() })

	s, err := Open(context.Background(), blob, logx.Nop())
	if err != nil {
		t.Fatalf("job.Open: %v", err)
	}
	return s, blob
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: time.Now()})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	b, err := s.Insert(ctx, Job{Type: TypeReminder, ParentJobID: a.ID, DateTime: time.Now()})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if b.ID <= a.ID {
		t.Fatalf("ids not monotonic: %d then %d", a.ID, b.ID)
	}

	// Delete everything; the next id must still be greater than any ever assigned.
	if _, err := s.DeleteByID(ctx, a.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	c, err := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: time.Now()})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if c.ID <= b.ID {
		t.Fatalf("id reused after delete: %d (max ever %d)", c.ID, b.ID)
	}
}

func TestCascadeDelete(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	appt, _ := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: now, EndDateTime: now.Add(time.Hour)})
	r1, _ := s.Insert(ctx, Job{Type: TypeReminder, ParentJobID: appt.ID, DateTime: now.Add(-time.Hour)})
	r2, _ := s.Insert(ctx, Job{Type: TypeReminder, ParentJobID: appt.ID, DateTime: now.Add(-2 * time.Hour)})
	other, _ := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: now.Add(2 * time.Hour), EndDateTime: now.Add(3 * time.Hour)})

	before := s.Len()
	removed, err := s.DeleteByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed %d jobs, want 3", len(removed))
	}
	if s.Len() != before-3 {
		t.Fatalf("store size %d, want %d", s.Len(), before-3)
	}
	for _, id := range []int64{appt.ID, r1.ID, r2.ID} {
		if _, ok := s.FindByID(id); ok {
			t.Fatalf("job %d survived cascade delete", id)
		}
	}
	if _, ok := s.FindByID(other.ID); !ok {
		t.Fatal("unrelated job was deleted")
	}

	if _, err := s.DeleteByID(ctx, appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSetStatusIsMonotonic(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	r, _ := s.Insert(ctx, Job{Type: TypeReminder, DateTime: time.Now().Add(time.Hour)})

	j, err := s.SetStatus(ctx, r.ID, StatusSent, "")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if j.Status != StatusSent {
		t.Fatalf("status = %s, want sent", j.Status)
	}

	// Terminal status must not be overwritten.
	j, err = s.SetStatus(ctx, r.ID, StatusSkippedPast, "late failure")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if j.Status != StatusSent {
		t.Fatalf("terminal status overwritten: %s", j.Status)
	}
	if j.LastError != "late failure" {
		t.Fatalf("LastError not recorded: %q", j.LastError)
	}

	if _, err := s.SetStatus(ctx, 9999, StatusSent, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReopenRestoresCounterAndJobs(t *testing.T) {
	t.Parallel()
	blob, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer blob.Close()
	ctx := context.Background()

	s1, err := Open(ctx, blob, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, _ := s1.Insert(ctx, Job{Type: TypeAppointment, DateTime: time.Now()})
	b, _ := s1.Insert(ctx, Job{Type: TypeReminder, ParentJobID: a.ID, DateTime: time.Now()})

	s2, err := Open(ctx, blob, logx.Nop())
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	if s2.Len() != 2 {
		t.Fatalf("reloaded %d jobs, want 2", s2.Len())
	}
	c, err := s2.Insert(ctx, Job{Type: TypeAppointment, DateTime: time.Now()})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if c.ID <= b.ID {
		t.Fatalf("id counter regressed across restart: %d after %d", c.ID, b.ID)
	}
}

func TestQueries(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

	appt, _ := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: base.Add(2 * time.Hour), EndDateTime: base.Add(3 * time.Hour)})
	s.Insert(ctx, Job{Type: TypeReminder, ParentJobID: appt.ID, DateTime: base})
	s.Insert(ctx, Job{Type: TypeMessage, DateTime: base.Add(time.Hour)})

	all := s.List()
	if len(all) != 3 {
		t.Fatalf("List len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].DateTime.After(all[i].DateTime) {
			t.Fatal("List not sorted by time")
		}
	}
	if got := len(s.ListByType(TypeAppointment)); got != 1 {
		t.Fatalf("ListByType(appointment) = %d, want 1", got)
	}
	if got := len(s.ListChildrenOf(appt.ID)); got != 1 {
		t.Fatalf("ListChildrenOf = %d, want 1", got)
	}
}

func TestPruneTerminalBefore(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old, _ := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: now.Add(-60 * 24 * time.Hour), Status: StatusPast})
	s.Insert(ctx, Job{Type: TypeReminder, ParentJobID: old.ID, DateTime: now.Add(-62 * 24 * time.Hour), Status: StatusSent})
	s.Insert(ctx, Job{Type: TypeMessage, DateTime: now.Add(-60 * 24 * time.Hour), Status: StatusPending})
	fresh, _ := s.Insert(ctx, Job{Type: TypeAppointment, DateTime: now.Add(24 * time.Hour)})

	removed, err := s.PruneTerminalBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneTerminalBefore: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2 (terminal appointment plus its reminder)", removed)
	}
	if _, ok := s.FindByID(fresh.ID); !ok {
		t.Fatal("future appointment pruned")
	}
	// Pending jobs survive regardless of age.
	if got := len(s.ListByType(TypeMessage)); got != 1 {
		t.Fatalf("pending message pruned, ListByType = %d", got)
	}
}
