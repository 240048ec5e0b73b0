// Package notify turns a confirmed booking into best-effort messages to
// the business owner and the customer.
//
// The booking is already durably persisted before this package runs, and a
// failed notification never rolls it back: failures are logged and the
// booking caller is not told.
package notify

import (
	"context"
	"fmt"
	"strings"

	"salonbot/internal/catalog"
	"salonbot/internal/job"
	"salonbot/internal/transport"
	logx "salonbot/pkg/logx"
)

type Config struct {
	// OwnerNumber receives the new-booking summary. Empty disables owner
	// notifications.
	OwnerNumber  string
	BusinessName string
}

type Dispatcher struct {
	log    logx.Logger
	sender transport.Sender
	cat    *catalog.Catalog
	cfg    Config
}

func New(sender transport.Sender, cat *catalog.Catalog, cfg Config, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "the salon"
	}
	return &Dispatcher{log: log, sender: sender, cat: cat, cfg: cfg}
}

// BookingConfirmed sends the owner summary and the customer confirmation
// for a persisted appointment. Both sends are independent: one failing
// does not stop the other.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, appt job.Job, updated bool) {
	services := strings.Join(d.cat.Names(appt.ServiceIDs), ", ")
	if services == "" {
		services = "not specified"
	}
	day := appt.DateTime.Format("Mon 2 Jan 2006")
	hour := appt.DateTime.Format("15:04")

	if d.cfg.OwnerNumber != "" {
		action := "New appointment"
		if updated {
			action = "Updated appointment"
		}
		summary := fmt.Sprintf(
			"%s!\n\nCustomer: %s\nPhone: %s\nServices: %s\nDate: %s at %s\nTotal: %.2f\n\nCheck the calendar for details.",
			action, appt.ContactName, appt.ContactNumber, services, day, hour, appt.TotalCost,
		)
		if err := d.sender.Send(ctx, d.cfg.OwnerNumber, summary); err != nil {
			d.log.Warn("owner notification failed",
				logx.Int64("appointment", appt.ID), logx.Err(err))
		}
	}

	confirmation := fmt.Sprintf(
		"Hi %s!\n\nYour appointment at %s is confirmed.\n\nServices: %s\nWhen: %s at %s\n\nSee you there! Reply to this message for any change.",
		appt.ContactName, d.cfg.BusinessName, services, day, hour,
	)
	if err := d.sender.Send(ctx, appt.ContactNumber, confirmation); err != nil {
		d.log.Warn("customer confirmation failed",
			logx.Int64("appointment", appt.ID),
			logx.String("to", appt.ContactNumber),
			logx.Err(err))
		return
	}
	d.log.Debug("booking notifications sent", logx.Int64("appointment", appt.ID))
}
