package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"salonbot/internal/storage"
	logx "salonbot/pkg/logx"
)

var ErrNotFound = errors.New("job not found")

// Store is the in-memory job collection backed by durable storage.
//
// All mutations are serialized behind one mutex and followed by a persist
// of the whole collection. Mutation and persist are not atomic across a
// crash; on restart the durable copy is authoritative.
type Store struct {
	log  logx.Logger
	blob storage.Store

	mu     sync.Mutex
	jobs   []Job
	nextID int64
}

// Open loads the job collection and primes the id counter at
// max(existing ids) + 1 so ids never collide across restarts.
func Open(ctx context.Context, blob storage.Store, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	var jobs []Job
	err := blob.Load(ctx, storage.KeyJobs, &jobs)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	var maxID int64
	for _, j := range jobs {
		if j.ID > maxID {
			maxID = j.ID
		}
	}

	s := &Store{log: log, blob: blob, jobs: jobs, nextID: maxID + 1}
	log.Info("job store opened", logx.Int("jobs", len(jobs)), logx.Int64("next_id", s.nextID))
	return s, nil
}

// Insert assigns an id and appends the job. A draft carrying a non-zero ID
// keeps it (edit-as-replace recreates a booking under its old id); the
// counter is bumped past it either way, so ids stay monotonic.
//
// The insert survives even when the follow-up persist fails; the error is
// returned so the caller knows durability was not reached.
func (s *Store) Insert(ctx context.Context, draft Job) (Job, error) {
	s.mu.Lock()
	if draft.ID == 0 {
		draft.ID = s.nextID
	}
	if draft.ID >= s.nextID {
		s.nextID = draft.ID + 1
	}
	if draft.Status == "" {
		draft.Status = StatusPending
	}
	s.jobs = append(s.jobs, draft)
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	return draft, err
}

// DeleteByID removes the job and every job whose ParentJobID equals id,
// returning the removed set so the caller can cancel their timers.
func (s *Store) DeleteByID(ctx context.Context, id int64) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Job
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if j.ID == id || j.ParentJobID == id {
			removed = append(removed, j)
			continue
		}
		kept = append(kept, j)
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.jobs = kept
	return removed, s.persistLocked(ctx)
}

// PruneTerminalBefore drops terminal jobs older than cutoff, cascading to
// their reminders, and returns how many records were removed. Pending jobs
// are never pruned regardless of age.
func (s *Store) PruneTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := map[int64]bool{}
	for _, j := range s.jobs {
		if j.Status.Terminal() && j.DateTime.Before(cutoff) {
			drop[j.ID] = true
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	kept := s.jobs[:0]
	removed := 0
	for _, j := range s.jobs {
		if drop[j.ID] || drop[j.ParentJobID] {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	s.jobs = kept
	return removed, s.persistLocked(ctx)
}

// SetStatus records a status transition (and optionally a send error).
// Terminal statuses are never overwritten.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status, sendErr string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		if !s.jobs[i].Status.Terminal() {
			s.jobs[i].Status = status
		}
		if sendErr != "" {
			s.jobs[i].LastError = sendErr
		}
		j := s.jobs[i]
		return j, s.persistLocked(ctx)
	}
	return Job{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

func (s *Store) FindByID(id int64) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// List returns a snapshot of all jobs sorted by time.
func (s *Store) List() []Job {
	s.mu.Lock()
	out := append([]Job(nil), s.jobs...)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out
}

func (s *Store) ListByType(t Type) []Job {
	var out []Job
	for _, j := range s.List() {
		if j.Type == t {
			out = append(out, j)
		}
	}
	return out
}

func (s *Store) ListChildrenOf(parentID int64) []Job {
	var out []Job
	for _, j := range s.List() {
		if j.ParentJobID == parentID {
			out = append(out, j)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Persist rewrites the durable copy of the whole collection.
// Normally the mutating operations do this themselves; recovery uses it to
// flush a batch of status transitions in one write.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.blob.Save(ctx, storage.KeyJobs, s.jobs); err != nil {
		// In-memory state stays the working truth until the next successful
		// persist. A crash in that window loses the latest mutations.
		s.log.Error("job persist failed", logx.Err(err), logx.Int("jobs", len(s.jobs)))
		return fmt.Errorf("persist jobs: %w", err)
	}
	return nil
}
