package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonbot/internal/eventbus"
	"salonbot/internal/job"
	"salonbot/internal/transport"
	logx "salonbot/pkg/logx"
)

// ErrSchedulingRefused rejects a timed job whose fire time has already
// passed. The job is not recorded; callers must not assume otherwise.
var ErrSchedulingRefused = errors.New("scheduling refused: fire time already passed")

const sendTimeout = 30 * time.Second

// Service manages one-shot delivery timers for timed jobs and the
// cancellation cascade for appointments.
//
// Timer handles live in a side table keyed by job id, never on the Job
// record itself. Each armed timer carries a version; cancellation bumps
// the version so a stale callback that already left time.AfterFunc's queue
// becomes a no-op.
type Service struct {
	log    logx.Logger
	store  *job.Store
	sender transport.Sender
	bus    eventbus.Bus

	now func() time.Time

	tmu    sync.Mutex
	timers map[int64]*time.Timer
	ver    map[int64]uint64
}

func New(store *job.Store, sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		store:  store,
		sender: sender,
		bus:    bus,
		now:    time.Now,
		timers: map[int64]*time.Timer{},
		ver:    map[int64]uint64{},
	}
}

// Schedule inserts the draft and, for timed jobs, arms its delivery timer.
//
// Appointments never run through the timer path: one starting in the past
// is recorded with status "past", anything else is stored pending and
// simply occupies calendar space. A timed job in the past is refused.
func (s *Service) Schedule(ctx context.Context, draft job.Job) (job.Job, error) {
	now := s.now()

	if !draft.Timed() {
		if !draft.DateTime.After(now) {
			draft.Status = job.StatusPast
		}
		j, err := s.store.Insert(ctx, draft)
		if err != nil {
			return j, err
		}
		s.publishUpdate()
		return j, nil
	}

	delay := draft.DateTime.Sub(now)
	if delay < 0 {
		return job.Job{}, fmt.Errorf("%w (due %s)", ErrSchedulingRefused, draft.DateTime.Format(time.RFC3339))
	}

	draft.Status = job.StatusPending
	j, err := s.store.Insert(ctx, draft)
	if err != nil {
		return j, err
	}
	s.arm(j.ID, delay)
	s.log.Debug("job scheduled",
		logx.Int64("id", j.ID),
		logx.String("type", string(j.Type)),
		logx.Duration("delay", delay))
	s.publishUpdate()
	return j, nil
}

// Cancel stops the timers of the job and every descendant reminder, then
// removes them from the store. The descendant set is resolved before any
// timer is cleared so no half-cancelled state is observable.
func (s *Service) Cancel(ctx context.Context, id int64) ([]job.Job, error) {
	ids := []int64{id}
	for _, child := range s.store.ListChildrenOf(id) {
		ids = append(ids, child.ID)
	}

	s.tmu.Lock()
	for _, jid := range ids {
		if t, ok := s.timers[jid]; ok {
			_ = t.Stop()
			delete(s.timers, jid)
		}
		delete(s.ver, jid)
	}
	s.tmu.Unlock()

	removed, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("job cancelled", logx.Int64("id", id), logx.Int("removed", len(removed)))
	s.publishUpdate()
	return removed, nil
}

// Recover re-arms timers for pending timed jobs loaded from durable
// storage. Jobs whose fire time elapsed while the process was down become
// skipped_past and are never fired retroactively.
func (s *Service) Recover(ctx context.Context) error {
	now := s.now()
	var armed, skipped int
	for _, j := range s.store.List() {
		if !j.Timed() || j.Status != job.StatusPending {
			continue
		}
		if j.DateTime.After(now) {
			s.arm(j.ID, j.DateTime.Sub(now))
			armed++
			continue
		}
		if _, err := s.store.SetStatus(ctx, j.ID, job.StatusSkippedPast, ""); err != nil {
			s.log.Error("recovery status update failed", logx.Int64("id", j.ID), logx.Err(err))
		}
		skipped++
	}
	s.log.Info("schedule recovered", logx.Int("rearmed", armed), logx.Int("skipped_past", skipped))
	if armed+skipped > 0 {
		s.publishUpdate()
	}
	return nil
}

// Stop clears every armed timer. Pending jobs stay pending in the store;
// the next Recover picks them up.
func (s *Service) Stop() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	for id, t := range s.timers {
		_ = t.Stop()
		delete(s.timers, id)
		delete(s.ver, id)
	}
}

func (s *Service) arm(id int64, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.tmu.Lock()
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
	}
	v := s.ver[id] + 1
	s.ver[id] = v
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id, v) })
	s.tmu.Unlock()
}

func (s *Service) fire(id int64, v uint64) {
	// Callback errors must never take the process down.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("timer callback panic", logx.Int64("id", id), logx.Any("panic", r))
		}
	}()

	s.tmu.Lock()
	if s.ver[id] != v {
		// Cancelled or re-armed after this timer was queued.
		s.tmu.Unlock()
		return
	}
	delete(s.timers, id)
	delete(s.ver, id)
	s.tmu.Unlock()

	j, ok := s.store.FindByID(id)
	if !ok || j.Status != job.StatusPending {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	sendErr := s.sender.Send(ctx, j.ContactNumber, j.Message)
	if sendErr != nil {
		// Record the failure on this job only; siblings are unaffected and
		// the scheduler never retries by itself.
		s.log.Warn("scheduled send failed",
			logx.Int64("id", id),
			logx.String("to", j.ContactNumber),
			logx.Err(sendErr))
	} else {
		s.log.Info("scheduled message sent", logx.Int64("id", id), logx.String("type", string(j.Type)))
	}

	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	if _, err := s.store.SetStatus(ctx, id, job.StatusSent, errText); err != nil {
		s.log.Error("status update failed after send", logx.Int64("id", id), logx.Err(err))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeStatusUpdate, Data: id})
	}
}

func (s *Service) publishUpdate() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeScheduleUpdate})
}

// PendingTimers reports how many delivery timers are currently armed.
func (s *Service) PendingTimers() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return len(s.timers)
}
