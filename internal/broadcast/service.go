// Package broadcast queues bulk message sends towards the chat backend.
//
// Each submitted job fans out one text to many numbers through a worker
// pool, throttled by a shared rate limiter, with bounded per-number
// retries. Progress is observable per job id.
package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"salonbot/internal/eventbus"
	"salonbot/internal/transport"
	logx "salonbot/pkg/logx"
)

var ErrQueueFull = errors.New("broadcast queue full")

type Service struct {
	log    logx.Logger
	sender transport.Sender
	bus    eventbus.Bus
	cfg    Config

	limiter *rate.Limiter
	queue   chan job

	statusMu sync.Mutex
	status   map[string]*JobStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		sender:  sender,
		bus:     bus,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan job, cfg.QueueSize),
		status:  map[string]*JobStatus{},
		stopCh:  make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(idx int) {
			defer s.wg.Done()
			s.worker(ctx, idx)
		}(i)
	}
	s.log.Info("broadcast service started", logx.Int("workers", s.cfg.Workers), logx.Int("rate_per_sec", s.cfg.RatePerSec))
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Enqueue submits a bulk send and returns its job id. Numbers are assumed
// already validated (see ParseNumbers).
func (s *Service) Enqueue(name string, numbers []string, text string) (string, error) {
	if len(numbers) == 0 || text == "" {
		return "", errors.New("numbers and text are required")
	}
	id := uuid.NewString()
	j := job{id: id, name: name, numbers: numbers, text: text}

	s.statusMu.Lock()
	s.status[id] = &JobStatus{ID: id, Name: name, Total: len(numbers)}
	s.statusMu.Unlock()

	select {
	case s.queue <- j:
		s.log.Info("broadcast enqueued", logx.String("job", id), logx.String("name", name), logx.Int("numbers", len(numbers)))
		return id, nil
	default:
		s.statusMu.Lock()
		delete(s.status, id)
		s.statusMu.Unlock()
		return "", ErrQueueFull
	}
}

func (s *Service) Status(id string) (JobStatus, bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.status[id]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// List returns all known job statuses, newest start first.
func (s *Service) List() []JobStatus {
	s.statusMu.Lock()
	out := make([]JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	s.statusMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
