package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"salonbot/internal/catalog"
	"salonbot/internal/job"
	logx "salonbot/pkg/logx"
)

type captureSender struct {
	fail map[string]bool
	sent map[string]string
}

func (c *captureSender) Send(_ context.Context, number, text string) error {
	if c.fail[number] {
		return errors.New("send refused")
	}
	if c.sent == nil {
		c.sent = map[string]string{}
	}
	c.sent[number] = text
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Service{
		{ID: "haircut", Name: "Haircut", DurationMinutes: 60, Cost: 35},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestBookingConfirmedNotifiesBothParties(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	d := New(sender, testCatalog(t), Config{OwnerNumber: "+15550001111", BusinessName: "Shear Genius"}, logx.Nop())

	appt := job.Job{
		ID:            7,
		Type:          job.TypeAppointment,
		DateTime:      time.Date(2026, 9, 12, 15, 0, 0, 0, time.Local),
		ContactName:   "Dana",
		ContactNumber: "+15551234567",
		ServiceIDs:    []string{"haircut"},
		TotalCost:     35,
	}
	d.BookingConfirmed(context.Background(), appt, false)

	owner := sender.sent["+15550001111"]
	if !strings.Contains(owner, "New appointment") || !strings.Contains(owner, "Dana") {
		t.Fatalf("owner summary = %q", owner)
	}
	customer := sender.sent["+15551234567"]
	if !strings.Contains(customer, "Shear Genius") || !strings.Contains(customer, "Haircut") {
		t.Fatalf("customer confirmation = %q", customer)
	}

	d.BookingConfirmed(context.Background(), appt, true)
	if !strings.Contains(sender.sent["+15550001111"], "Updated appointment") {
		t.Fatalf("rebooking summary = %q", sender.sent["+15550001111"])
	}
}

func TestOwnerFailureDoesNotBlockCustomer(t *testing.T) {
	t.Parallel()

	sender := &captureSender{fail: map[string]bool{"+15550001111": true}}
	d := New(sender, testCatalog(t), Config{OwnerNumber: "+15550001111"}, logx.Nop())

	d.BookingConfirmed(context.Background(), job.Job{
		ID:            8,
		Type:          job.TypeAppointment,
		DateTime:      time.Now().Add(24 * time.Hour),
		ContactName:   "Eve",
		ContactNumber: "+15559876543",
		ServiceIDs:    []string{"haircut"},
	}, false)

	if _, ok := sender.sent["+15559876543"]; !ok {
		t.Fatal("customer confirmation skipped after owner failure")
	}
}

func TestNoOwnerConfigured(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	d := New(sender, testCatalog(t), Config{}, logx.Nop())
	d.BookingConfirmed(context.Background(), job.Job{
		ContactName:   "Dana",
		ContactNumber: "+15551234567",
		DateTime:      time.Now(),
	}, false)

	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want only the customer confirmation", len(sender.sent))
	}
}
