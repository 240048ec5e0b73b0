package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"salonbot/internal/catalog"
	"salonbot/internal/job"
)

var ErrInvalidRequest = errors.New("invalid booking request")

// DefaultMaxServices caps the number of services in one availability
// request. Subset search is exponential in the selection size, so this is
// a deliberate scale limit rather than a silent hang.
const DefaultMaxServices = 8

type Verdict string

const (
	// VerdictAvailable: the full requested service set fits at the
	// requested start time.
	VerdictAvailable Verdict = "available"
	// VerdictPartial: only a subset fits; Result carries the
	// largest-duration subset that does.
	VerdictPartial Verdict = "partial"
	// VerdictUnavailable: no non-empty subset fits.
	VerdictUnavailable Verdict = "unavailable"
)

// Result reports what can be booked at the requested start time.
type Result struct {
	Verdict    Verdict       `json:"verdict"`
	ServiceIDs []string      `json:"serviceIds,omitempty"`
	Duration   time.Duration `json:"-"`
	End        time.Time     `json:"end,omitzero"`
}

func (r Result) Bookable() bool { return r.Verdict != VerdictUnavailable }

// Overlaps implements half-open interval semantics: [s1,e1) and [s2,e2)
// conflict iff s1 < e2 && s2 < e1. A job ending exactly when another
// starts does not conflict, enabling back-to-back bookings.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// CheckAvailability decides whether the requested services fit at start
// given the existing appointments, degrading to the best obtainable subset
// when the full request conflicts.
//
// Pure computation over the snapshot passed in: no side effects, and the
// same arguments against the same snapshot always yield the same result.
// Equal-duration subsets tie-break lexicographically by their sorted
// service-id tuple, so the choice is deterministic.
func CheckAvailability(cat *catalog.Catalog, requestedIDs []string, start time.Time, existing []job.Job, maxServices int) (Result, error) {
	if maxServices <= 0 {
		maxServices = DefaultMaxServices
	}

	ids := dedupeSorted(requestedIDs)
	if len(ids) == 0 {
		return Result{}, fmt.Errorf("%w: no services selected", ErrInvalidRequest)
	}
	if len(ids) > maxServices {
		return Result{}, fmt.Errorf("%w: at most %d services per request", ErrInvalidRequest, maxServices)
	}

	total, err := cat.TotalDuration(ids)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	appts := appointmentsOnly(existing)

	// Fast path: the whole request fits.
	if !conflicts(start, start.Add(total), appts) {
		return Result{Verdict: VerdictAvailable, ServiceIDs: ids, Duration: total, End: start.Add(total)}, nil
	}

	// Enumerate every non-empty strict subset, largest duration first.
	for _, sub := range subsetsByDuration(cat, ids) {
		end := start.Add(sub.duration)
		if !conflicts(start, end, appts) {
			return Result{Verdict: VerdictPartial, ServiceIDs: sub.ids, Duration: sub.duration, End: end}, nil
		}
	}

	return Result{Verdict: VerdictUnavailable}, nil
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func appointmentsOnly(jobs []job.Job) []job.Job {
	out := make([]job.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Type == job.TypeAppointment {
			out = append(out, j)
		}
	}
	return out
}

func conflicts(start, end time.Time, appts []job.Job) bool {
	for _, a := range appts {
		as, ae := a.Interval()
		if Overlaps(start, end, as, ae) {
			return true
		}
	}
	return false
}

type subset struct {
	ids      []string
	duration time.Duration
}

// subsetsByDuration returns every non-empty strict subset of ids, sorted by
// duration descending; equal durations order lexicographically by the
// comma-joined id tuple. ids must already be sorted and validated.
func subsetsByDuration(cat *catalog.Catalog, ids []string) []subset {
	n := len(ids)
	full := (1 << n) - 1
	subs := make([]subset, 0, full-1)
	for mask := 1; mask < full; mask++ {
		var sel []string
		var dur time.Duration
		for i := 0; i < n; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			sel = append(sel, ids[i])
			svc, _ := cat.Get(ids[i])
			dur += svc.Duration()
		}
		subs = append(subs, subset{ids: sel, duration: dur})
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].duration != subs[j].duration {
			return subs[i].duration > subs[j].duration
		}
		return strings.Join(subs[i].ids, ",") < strings.Join(subs[j].ids, ",")
	})
	return subs
}
