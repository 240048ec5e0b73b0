package job

import "time"

// Type discriminates the two kinds of scheduled work.
type Type string

const (
	// TypeAppointment occupies calendar time. Appointments never fire a
	// timer; they exist to block slots and to anchor child reminders.
	TypeAppointment Type = "appointment"
	// TypeReminder fires a message at its DateTime.
	TypeReminder Type = "reminder"
	// TypeMessage is a one-shot scheduled send with no parent appointment.
	TypeMessage Type = "message"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	// StatusSkippedPast marks a pending job whose fire time elapsed while
	// the process was down. It is never sent retroactively.
	StatusSkippedPast Status = "skipped_past"
	// StatusPast marks an appointment whose start had already passed at
	// creation time.
	StatusPast Status = "past"
)

// Terminal reports whether a job can never leave its current status.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusSkippedPast || s == StatusPast
}

// Job is the unit of schedulable work.
//
// Contact fields are a snapshot taken at booking time; later address-book
// edits do not rewrite history. Timer handles are deliberately NOT part of
// this record: the scheduler owns them in a side table keyed by ID, so
// they are never serialized.
type Job struct {
	ID       int64     `json:"id"`
	Type     Type      `json:"jobType"`
	DateTime time.Time `json:"dateTime"`
	// EndDateTime is set for appointments only: DateTime plus the summed
	// duration of the selected services.
	EndDateTime time.Time `json:"endDateTime,omitzero"`

	ContactName   string `json:"contactName,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`

	ServiceIDs []string `json:"serviceIds,omitempty"`
	TotalCost  float64  `json:"totalCost,omitempty"`

	Message string `json:"message,omitempty"`

	// ParentJobID links a reminder to its owning appointment. Deleting the
	// appointment cascades to every job carrying its id here.
	ParentJobID int64 `json:"parentJobId,omitempty"`

	Status Status `json:"status"`

	// LastError records the most recent send failure for this job.
	// The scheduler never retries on its own.
	LastError string `json:"lastError,omitempty"`
}

// Timed reports whether this job runs through the timer path.
func (j Job) Timed() bool { return j.Type != TypeAppointment }

// Interval returns the half-open calendar interval occupied by an
// appointment. Reminders occupy no calendar time.
func (j Job) Interval() (start, end time.Time) {
	if j.Type != TypeAppointment {
		return j.DateTime, j.DateTime
	}
	return j.DateTime, j.EndDateTime
}
