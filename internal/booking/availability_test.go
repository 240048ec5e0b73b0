package booking

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"salonbot/internal/catalog"
	"salonbot/internal/job"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Service{
		{ID: "haircut", Name: "Haircut", DurationMinutes: 60, Cost: 25},
		{ID: "color", Name: "Color", DurationMinutes: 90, Cost: 50},
		{ID: "blowdry", Name: "Blow-dry", DurationMinutes: 30, Cost: 15},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func appt(start, end time.Time) job.Job {
	return job.Job{Type: job.TypeAppointment, DateTime: start, EndDateTime: end}
}

func at(hhmm string) time.Time {
	tm, err := time.Parse("2006-01-02 15:04", "2026-03-10 "+hhmm)
	if err != nil {
		panic(err)
	}
	return tm
}

func TestOverlapsHalfOpen(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{name: "disjoint", s1: "09:00", e1: "10:00", s2: "11:00", e2: "12:00", want: false},
		{name: "back to back", s1: "09:00", e1: "10:00", s2: "10:00", e2: "11:00", want: false},
		{name: "identical", s1: "09:00", e1: "10:00", s2: "09:00", e2: "10:00", want: true},
		{name: "partial overlap", s1: "09:00", e1: "10:00", s2: "09:30", e2: "10:30", want: true},
		{name: "contained", s1: "09:00", e1: "12:00", s2: "10:00", e2: "11:00", want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(at(tt.s1), at(tt.e1), at(tt.s2), at(tt.e2))
			if got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if Overlaps(at(tt.s2), at(tt.e2), at(tt.s1), at(tt.e1)) != got {
				t.Fatal("Overlaps not symmetric")
			}
		})
	}
}

// The worked scenario: Haircut 60m + Color 90m against an existing
// 09:00-10:30 booking.
func TestCheckAvailabilityScenario(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)
	existing := []job.Job{appt(at("09:00"), at("10:30"))}

	// At 09:00 nothing fits: 150m conflicts, Color alone 09:00-10:30 is the
	// identical interval, Haircut alone 09:00-10:00 overlaps too.
	res, err := CheckAvailability(cat, []string{"haircut", "color"}, at("09:00"), existing, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if res.Verdict != VerdictUnavailable {
		t.Fatalf("verdict = %s, want unavailable", res.Verdict)
	}

	// At 10:30 the full request fits back-to-back.
	res, err = CheckAvailability(cat, []string{"haircut", "color"}, at("10:30"), existing, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if res.Verdict != VerdictAvailable {
		t.Fatalf("verdict = %s, want available", res.Verdict)
	}
	if res.Duration != 150*time.Minute {
		t.Fatalf("duration = %v, want 150m", res.Duration)
	}
	if !res.End.Equal(at("13:00")) {
		t.Fatalf("end = %v, want 13:00", res.End)
	}
}

func TestPartialPicksLargestSubset(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)
	// 100 minutes free before the next appointment: color (90) fits,
	// haircut+blowdry (90) ties, color+anything (120+) does not.
	existing := []job.Job{appt(at("10:40"), at("12:00"))}

	res, err := CheckAvailability(cat, []string{"haircut", "color", "blowdry"}, at("09:00"), existing, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if res.Verdict != VerdictPartial {
		t.Fatalf("verdict = %s, want partial", res.Verdict)
	}
	if res.Duration != 90*time.Minute {
		t.Fatalf("duration = %v, want 90m", res.Duration)
	}
	// 90m tie between {color} and {blowdry,haircut}; lexicographic
	// tie-break on the sorted id tuple picks {blowdry,haircut}.
	if want := []string{"blowdry", "haircut"}; !reflect.DeepEqual(res.ServiceIDs, want) {
		t.Fatalf("services = %v, want %v", res.ServiceIDs, want)
	}

	// Maximality: no other fitting subset has a strictly greater duration.
	// The next duration up is 120m (blowdry+color) which would end 11:00,
	// inside the existing booking.
	if Overlaps(at("09:00"), at("11:00"), at("10:40"), at("12:00")) != true {
		t.Fatal("test premise broken")
	}
}

func TestCheckAvailabilityIdempotent(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)
	existing := []job.Job{appt(at("09:30"), at("11:00"))}

	first, err := CheckAvailability(cat, []string{"color", "haircut", "blowdry"}, at("09:00"), existing, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := CheckAvailability(cat, []string{"blowdry", "haircut", "color"}, at("09:00"), existing, 0)
		if err != nil {
			t.Fatalf("CheckAvailability: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("result changed across identical calls: %+v vs %+v", first, again)
		}
	}
}

func TestInvalidRequests(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)

	if _, err := CheckAvailability(cat, nil, at("09:00"), nil, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty selection: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := CheckAvailability(cat, []string{"haircut", "nope"}, at("09:00"), nil, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown service: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := CheckAvailability(cat, []string{"haircut", "color", "blowdry"}, at("09:00"), nil, 2); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("over cap: err = %v, want ErrInvalidRequest", err)
	}
}

func TestDuplicateSelectionCollapses(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)
	res, err := CheckAvailability(cat, []string{"haircut", "haircut"}, at("09:00"), nil, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if res.Duration != 60*time.Minute {
		t.Fatalf("duplicate ids double-counted: %v", res.Duration)
	}
	if want := []string{"haircut"}; !reflect.DeepEqual(res.ServiceIDs, want) {
		t.Fatalf("services = %v, want %v", res.ServiceIDs, want)
	}
}

func TestRemindersDoNotBlockSlots(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)
	existing := []job.Job{
		{Type: job.TypeReminder, DateTime: at("09:00")},
		{Type: job.TypeMessage, DateTime: at("09:30")},
	}
	res, err := CheckAvailability(cat, []string{"haircut"}, at("09:00"), existing, 0)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if res.Verdict != VerdictAvailable {
		t.Fatalf("verdict = %s, want available (non-appointments occupy no calendar time)", res.Verdict)
	}
}
