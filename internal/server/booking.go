package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salonbot/internal/addressbook"
	"salonbot/internal/booking"
	"salonbot/internal/broadcast"
	"salonbot/internal/job"
	"salonbot/internal/scheduler"
	logx "salonbot/pkg/logx"
)

type contactPayload struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type bookRequest struct {
	// ID, when non-zero, replaces an existing appointment: the old one and
	// its reminders are cancelled and the slot is rebooked under the same id.
	ID         int64                    `json:"id,omitempty"`
	Contact    contactPayload           `json:"contact"`
	ServiceIDs []string                 `json:"serviceIds"`
	DateTime   time.Time                `json:"dateTime"`
	Reminders  []booking.ReminderOffset `json:"reminders,omitempty"`
}

type bookResponse struct {
	Appointment job.Job   `json:"appointment"`
	Reminders   []job.Job `json:"reminders,omitempty"`
}

type availabilityRequest struct {
	ServiceIDs []string  `json:"serviceIds"`
	DateTime   time.Time `json:"dateTime"`
}

type availabilityResponse struct {
	booking.Result
	DurationMinutes int `json:"durationMinutes,omitempty"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.checkSlot(req.ServiceIDs, req.DateTime, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Result:          res,
		DurationMinutes: int(res.Duration / time.Minute),
	})
}

func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.book(w, r, req)
}

// handlePublicBook is the customer-facing booking path: no replacement and
// no reminder control.
func (s *Server) handlePublicBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID != 0 {
		writeError(w, http.StatusBadRequest, "cannot rebook an existing appointment here")
		return
	}
	req.Reminders = nil
	s.book(w, r, req)
}

func (s *Server) book(w http.ResponseWriter, r *http.Request, req bookRequest) {
	ctx := r.Context()

	if strings.TrimSpace(req.Contact.Name) == "" {
		writeError(w, http.StatusBadRequest, "contact name is required")
		return
	}
	if !broadcast.ValidNumber(req.Contact.Number) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid contact number %q", req.Contact.Number))
		return
	}

	// Validate before touching any state: a bad reminder must not leave the
	// old appointment cancelled.
	fires := make([]time.Time, len(req.Reminders))
	for i, o := range req.Reminders {
		ft, err := o.FireTime(req.DateTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fires[i] = ft
	}

	res, err := s.checkSlot(req.ServiceIDs, req.DateTime, req.ID)
	if errors.Is(err, booking.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "availability check failed")
		return
	}
	if res.Verdict != booking.VerdictAvailable {
		// The caller gets the best obtainable subset and may re-request it.
		writeJSON(w, http.StatusConflict, availabilityResponse{
			Result:          res,
			DurationMinutes: int(res.Duration / time.Minute),
		})
		return
	}

	if req.ID != 0 {
		if _, err := s.deps.Scheduler.Cancel(ctx, req.ID); err != nil && !errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "could not replace appointment")
			return
		}
	}

	cost, _ := s.deps.Catalog.TotalCost(res.ServiceIDs)
	appt, err := s.deps.Scheduler.Schedule(ctx, job.Job{
		ID:            req.ID,
		Type:          job.TypeAppointment,
		DateTime:      req.DateTime,
		EndDateTime:   res.End,
		ContactName:   req.Contact.Name,
		ContactNumber: req.Contact.Number,
		ServiceIDs:    res.ServiceIDs,
		TotalCost:     cost,
		Message:       strings.Join(s.deps.Catalog.Names(res.ServiceIDs), ", "),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "booking failed")
		return
	}

	var reminders []job.Job
	for i, o := range req.Reminders {
		child, err := s.deps.Scheduler.Schedule(ctx, job.Job{
			Type:          job.TypeReminder,
			DateTime:      fires[i],
			ContactName:   req.Contact.Name,
			ContactNumber: req.Contact.Number,
			Message:       o.Message(),
			ParentJobID:   appt.ID,
		})
		if errors.Is(err, scheduler.ErrSchedulingRefused) {
			s.log.Debug("reminder in the past, skipped",
				logx.Int64("appointment", appt.ID),
				logx.Time("fire", fires[i]))
			continue
		}
		if err != nil {
			s.log.Error("reminder scheduling failed",
				logx.Int64("appointment", appt.ID),
				logx.Err(err))
			continue
		}
		reminders = append(reminders, child)
	}

	if _, err := s.deps.Book.Add(ctx, []addressbook.Contact{{Name: req.Contact.Name, Number: req.Contact.Number}}); err != nil {
		s.log.Warn("address book update failed", logx.Err(err))
	}
	s.deps.Notifier.BookingConfirmed(ctx, appt, req.ID != 0)

	writeJSON(w, http.StatusCreated, bookResponse{Appointment: appt, Reminders: reminders})
}

// checkSlot runs the availability search against the current appointment
// snapshot, excluding the appointment being replaced so editing a booking
// does not collide with itself.
func (s *Server) checkSlot(serviceIDs []string, start time.Time, excludeID int64) (booking.Result, error) {
	appts := s.deps.Jobs.ListByType(job.TypeAppointment)
	if excludeID != 0 {
		kept := appts[:0]
		for _, a := range appts {
			if a.ID != excludeID {
				kept = append(kept, a)
			}
		}
		appts = kept
	}
	return booking.CheckAvailability(s.deps.Catalog, serviceIDs, start, appts, s.cfg.MaxServices)
}
