package broadcast

import (
	"context"
	"time"

	"salonbot/internal/eventbus"
	logx "salonbot/pkg/logx"
)

func (s *Service) worker(ctx context.Context, idx int) {
	for {
		// fast-exit so stop wins over queued work
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case j := <-s.queue:
			s.execJob(ctx, j)
		}
	}
}

func (s *Service) execJob(ctx context.Context, j job) {
	start := time.Now()
	s.mark(j.id, func(st *JobStatus) {
		st.Running = true
		st.StartedAt = start
	})
	s.log.Info("broadcast job started", logx.String("job", j.id), logx.String("name", j.name), logx.Int("total", len(j.numbers)))

	for _, number := range j.numbers {
		err := s.sendOne(ctx, j, number)
		s.mark(j.id, func(st *JobStatus) {
			st.Done++
			if err != nil {
				st.Failed++
			}
		})
		s.publishProgress(j.id)

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}
	}

	s.mark(j.id, func(st *JobStatus) {
		st.Running = false
		st.Finished = true
	})
	s.publishProgress(j.id)

	st, _ := s.Status(j.id)
	fields := []logx.Field{
		logx.String("job", j.id),
		logx.String("name", j.name),
		logx.Int("total", st.Total),
		logx.Int("failed", st.Failed),
		logx.Duration("dur", time.Since(start)),
	}
	if st.Failed > 0 {
		s.log.Warn("broadcast job finished with failures", fields...)
	} else {
		s.log.Info("broadcast job finished", fields...)
	}
}

func (s *Service) sendOne(ctx context.Context, j job, number string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var last error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		err := s.sender.Send(ctx, number, j.text)
		if err == nil {
			return nil
		}
		last = err
		if attempt == s.cfg.RetryMax {
			break
		}
		delay := time.Duration(200+100*attempt) * time.Millisecond
		s.log.Debug("broadcast send retry scheduled",
			logx.String("job", j.id), logx.String("to", number),
			logx.Int("attempt", attempt+2), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	s.log.Warn("broadcast send failed", logx.String("job", j.id), logx.String("to", number), logx.Err(last))
	return last
}

func (s *Service) mark(id string, fn func(*JobStatus)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		fn(st)
	}
}

func (s *Service) publishProgress(id string) {
	if s.bus == nil {
		return
	}
	st, ok := s.Status(id)
	if !ok {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastUpdate, Data: st})
}
