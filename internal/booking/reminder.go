package booking

import (
	"fmt"
	"time"
)

// ReminderOffset describes when to remind a customer relative to their
// appointment: Value+Unit before the start, fired at the wall-clock time
// At ("HH:MM") of that day.
type ReminderOffset struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"` // "days" or "hours"
	At    string `json:"at"`   // "HH:MM"
}

// FireTime computes the reminder's absolute fire time. The offset is
// subtracted from the appointment start, then the clock is pinned to At.
func (o ReminderOffset) FireTime(apptStart time.Time) (time.Time, error) {
	if o.Value <= 0 {
		return time.Time{}, fmt.Errorf("%w: reminder value must be > 0", ErrInvalidRequest)
	}
	at, err := time.Parse("15:04", o.At)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reminder time %q: %v", ErrInvalidRequest, o.At, err)
	}

	t := apptStart
	switch o.Unit {
	case "days":
		t = t.AddDate(0, 0, -o.Value)
	case "hours":
		t = t.Add(-time.Duration(o.Value) * time.Hour)
	default:
		return time.Time{}, fmt.Errorf("%w: reminder unit %q", ErrInvalidRequest, o.Unit)
	}

	return time.Date(t.Year(), t.Month(), t.Day(), at.Hour(), at.Minute(), 0, 0, t.Location()), nil
}

// Message renders the reminder text sent to the customer.
func (o ReminderOffset) Message() string {
	unit := o.Unit
	if o.Value == 1 {
		switch o.Unit {
		case "days":
			unit = "day"
		case "hours":
			unit = "hour"
		}
	}
	return fmt.Sprintf("Reminder: your appointment is in about %d %s.", o.Value, unit)
}
