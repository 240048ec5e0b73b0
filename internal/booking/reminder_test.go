package booking

import (
	"errors"
	"testing"
	"time"
)

func TestReminderFireTime(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 9, 12, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		name   string
		offset ReminderOffset
		want   time.Time
	}{
		{
			name:   "two days before at morning",
			offset: ReminderOffset{Value: 2, Unit: "days", At: "09:00"},
			want:   time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:   "three hours before pinned to clock",
			offset: ReminderOffset{Value: 3, Unit: "hours", At: "12:15"},
			want:   time.Date(2026, 9, 12, 12, 15, 0, 0, time.UTC),
		},
		{
			name:   "hours crossing midnight lands on previous day",
			offset: ReminderOffset{Value: 20, Unit: "hours", At: "19:00"},
			want:   time.Date(2026, 9, 11, 19, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.offset.FireTime(start)
			if err != nil {
				t.Fatalf("FireTime: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("fire time = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReminderFireTimeInvalid(t *testing.T) {
	t.Parallel()

	start := time.Now()
	bad := []ReminderOffset{
		{Value: 0, Unit: "days", At: "09:00"},
		{Value: 1, Unit: "weeks", At: "09:00"},
		{Value: 1, Unit: "days", At: "9am"},
	}
	for _, o := range bad {
		if _, err := o.FireTime(start); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("offset %+v: err = %v, want ErrInvalidRequest", o, err)
		}
	}
}

func TestReminderMessage(t *testing.T) {
	t.Parallel()

	if got := (ReminderOffset{Value: 1, Unit: "days"}).Message(); got != "Reminder: your appointment is in about 1 day." {
		t.Fatalf("singular message = %q", got)
	}
	if got := (ReminderOffset{Value: 2, Unit: "hours"}).Message(); got != "Reminder: your appointment is in about 2 hours." {
		t.Fatalf("plural message = %q", got)
	}
}
