// Package app assembles the salonbot services: configuration, logging,
// storage, the chat transport, the booking scheduler and the HTTP server,
// with ordered startup and bounded shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	"salonbot/internal/addressbook"
	"salonbot/internal/broadcast"
	"salonbot/internal/catalog"
	"salonbot/internal/config"
	"salonbot/internal/eventbus"
	"salonbot/internal/job"
	"salonbot/internal/notify"
	"salonbot/internal/scheduler"
	"salonbot/internal/server"
	"salonbot/internal/storage"
	"salonbot/internal/transport"
	logx "salonbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	blob   storage.Store
	cat    *catalog.Catalog
	jobs   *job.Store
	book   *addressbook.Book
	driver transport.Driver
	sched  *scheduler.Service
	notif  *notify.Dispatcher
	bcast  *broadcast.Service
	srv    *server.Server
	digest *digestService

	sup       *supervisor
	serverErr chan error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleLogging(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       eventbus.New(),
		serverErr: make(chan error, 1),
	}
	if err := a.build(cfg); err != nil {
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	ctx := context.Background()

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return err
	}
	blob, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.blob = blob

	cat, err := catalog.Load(ctx, blob)
	if err != nil {
		return fmt.Errorf("load service catalog: %w", err)
	}
	a.cat = cat
	a.log.Info("service catalog loaded", logx.Int("services", cat.Len()))

	a.jobs, err = job.Open(ctx, blob, a.log.With(logx.String("comp", "jobs")))
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	a.book, err = addressbook.Open(ctx, blob, a.log.With(logx.String("comp", "addressbook")))
	if err != nil {
		return fmt.Errorf("open address book: %w", err)
	}

	tcfg, err := mapTransportConfig(cfg)
	if err != nil {
		return err
	}
	a.driver, err = transport.Open(tcfg, a.log.With(logx.String("comp", "transport")), func(number, name string) {
		a.book.TouchRecent(number)
	})
	if err != nil {
		return err
	}

	a.sched = scheduler.New(a.jobs, a.driver, a.bus, a.log.With(logx.String("comp", "scheduler")))
	a.notif = notify.New(a.driver, cat, notify.Config{
		OwnerNumber:  cfg.Notify.OwnerNumber,
		BusinessName: cfg.Notify.BusinessName,
	}, a.log.With(logx.String("comp", "notify")))

	a.bcast = broadcast.New(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		QueueSize:  cfg.Broadcast.QueueSize,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, a.driver, a.bus, a.log.With(logx.String("comp", "broadcast")))

	a.srv = server.New(server.Config{
		Addr:        cfg.ServerAddr(),
		MaxServices: cfg.MaxServices(),
	}, server.Deps{
		Log:       a.log.With(logx.String("comp", "http")),
		Catalog:   cat,
		Jobs:      a.jobs,
		Scheduler: a.sched,
		Notifier:  a.notif,
		Book:      a.book,
		Broadcast: a.bcast,
		Bus:       a.bus,
	})

	a.digest, err = newDigest(cfg.Digest, cfg.Notify.OwnerNumber, a.jobs, cat, a.driver,
		a.log.With(logx.String("comp", "digest")))
	if err != nil {
		return err
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = newSupervisor(ctx, a.log)
	runCtx := a.sup.Context()

	if err := a.driver.Start(runCtx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	// Re-arm surviving timers before anything can book new work.
	if err := a.sched.Recover(runCtx); err != nil {
		return fmt.Errorf("recover schedule: %w", err)
	}

	a.bcast.Start(runCtx)
	a.srv.Start(runCtx, a.serverErr)
	if a.digest != nil {
		a.digest.start()
	}

	a.sup.Go("http.serve", func(c context.Context) error {
		select {
		case <-c.Done():
			return nil
		case err := <-a.serverErr:
			return err
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		a.reloadLoop(c, sub)
		return nil
	})

	a.log.Info("salonbot started")
	return nil
}

// Done is closed when a fatal background error cancels the run context.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal background error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// reloadLoop applies hot-reloadable sections of a changed config file.
// Logging applies live; storage, transport and server changes need a
// restart and are only reported.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.ConsoleLogging(),
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("config reloaded",
				logx.String("level", cfg.Logging.Level))
		}
	}
}

// Stop unwinds in reverse start order. Every step is individually bounded
// so a stuck component cannot stall the whole shutdown.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic: %v", r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached", logx.String("name", name))
		}
	}

	step("http", 5*time.Second, func(c context.Context) error { return a.srv.Stop(c) })
	if a.digest != nil {
		step("digest", 2*time.Second, func(c context.Context) error { a.digest.stop(c); return nil })
	}
	step("broadcast", 3*time.Second, func(context.Context) error { a.bcast.Stop(); return nil })
	step("scheduler", 1*time.Second, func(context.Context) error { a.sched.Stop(); return nil })
	step("transport", 2*time.Second, func(c context.Context) error { return a.driver.Stop(c) })
	step("storage", 1*time.Second, func(context.Context) error { return a.blob.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	a.logs.Close()
	return a.sup.Err()
}

func mapTransportConfig(cfg *config.Config) (transport.Config, error) {
	pollTimeout, err := config.ParseDurationOrDefault("transport.telegram.poll_timeout", cfg.Transport.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return transport.Config{}, err
	}
	gwTimeout, err := config.ParseDurationOrDefault("transport.gateway.timeout", cfg.Transport.Gateway.Timeout, 15*time.Second)
	if err != nil {
		return transport.Config{}, err
	}
	return transport.Config{
		Driver: cfg.Transport.Driver,
		Telegram: transport.TelegramConfig{
			Token:       cfg.Transport.Telegram.Token,
			PollTimeout: pollTimeout,
		},
		Gateway: transport.GatewayConfig{
			URL:     cfg.Transport.Gateway.URL,
			Token:   cfg.Transport.Gateway.Token,
			Timeout: gwTimeout,
		},
	}, nil
}
