package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"salonbot/internal/catalog"
	"salonbot/internal/config"
	"salonbot/internal/job"
	"salonbot/internal/transport"
	logx "salonbot/pkg/logx"
)

const digestSendTimeout = 30 * time.Second

// digestService sends the owner a daily appointment summary and sweeps
// terminal jobs past their retention window.
type digestService struct {
	log       logx.Logger
	jobs      *job.Store
	cat       *catalog.Catalog
	sender    transport.Sender
	owner     string
	retention time.Duration

	cron *cron.Cron
	now  func() time.Time
}

func newDigest(cfg config.DigestConfig, owner string, jobs *job.Store, cat *catalog.Catalog, sender transport.Sender, log logx.Logger) (*digestService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	at := cfg.At
	if at == "" {
		at = "08:00"
	}
	tm, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("digest.at: %w", err)
	}

	retention, err := config.ParseDurationOrDefault("digest.retention", cfg.Retention, 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	d := &digestService{
		log:       log,
		jobs:      jobs,
		cat:       cat,
		sender:    sender,
		owner:     owner,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	spec := fmt.Sprintf("%d %d * * *", tm.Minute(), tm.Hour())
	if _, err := d.cron.AddFunc(spec, d.run); err != nil {
		return nil, fmt.Errorf("digest schedule: %w", err)
	}
	return d, nil
}

func (d *digestService) start() {
	d.cron.Start()
	d.log.Info("daily digest scheduled", logx.Duration("retention", d.retention))
}

func (d *digestService) stop(ctx context.Context) {
	stopped := d.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

func (d *digestService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), digestSendTimeout)
	defer cancel()

	now := d.now()
	if d.owner != "" {
		msg := digestMessage(now, d.jobs.ListByType(job.TypeAppointment), d.cat)
		if err := d.sender.Send(ctx, d.owner, msg); err != nil {
			d.log.Warn("digest send failed", logx.Err(err))
		}
	}

	removed, err := d.jobs.PruneTerminalBefore(ctx, now.Add(-d.retention))
	if err != nil {
		d.log.Error("retention prune failed", logx.Err(err))
	} else if removed > 0 {
		d.log.Info("old jobs pruned", logx.Int("removed", removed))
	}
}

// digestMessage renders the owner summary for appointments on now's date.
func digestMessage(now time.Time, appts []job.Job, cat *catalog.Catalog) string {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var today []job.Job
	for _, a := range appts {
		if !a.DateTime.Before(dayStart) && a.DateTime.Before(dayEnd) {
			today = append(today, a)
		}
	}

	if len(today) == 0 {
		return fmt.Sprintf("No appointments today (%s).", dayStart.Format("Mon 2 Jan"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Appointments today (%s):", dayStart.Format("Mon 2 Jan"))
	for _, a := range today {
		fmt.Fprintf(&b, "\n%s  %s", a.DateTime.Format("15:04"), a.ContactName)
		if names := cat.Names(a.ServiceIDs); len(names) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
		}
	}
	return b.String()
}
