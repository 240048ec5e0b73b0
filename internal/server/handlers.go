package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"salonbot/internal/addressbook"
	"salonbot/internal/broadcast"
	"salonbot/internal/job"
	logx "salonbot/pkg/logx"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.List())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		writeJSON(w, http.StatusOK, s.deps.Jobs.ListByType(job.Type(t)))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Jobs.List())
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	removed, err := s.deps.Scheduler.Cancel(r.Context(), id)
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": len(removed)})
}

// busySlot is the public view of an appointment: occupied time, no
// customer identity.
type busySlot struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) handlePublicAppointments(w http.ResponseWriter, r *http.Request) {
	appts := s.deps.Jobs.ListByType(job.TypeAppointment)
	slots := make([]busySlot, 0, len(appts))
	for _, a := range appts {
		start, end := a.Interval()
		slots = append(slots, busySlot{ID: a.ID, Start: start, End: end})
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *Server) handleAddressBookList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Book.List())
}

func (s *Server) handleAddressBookAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contacts []addressbook.Contact `json:"contacts"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, c := range req.Contacts {
		if c.Number != "" && !broadcast.ValidNumber(c.Number) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid number %q", c.Number))
			return
		}
	}
	added, err := s.deps.Book.Add(r.Context(), req.Contacts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "address book save failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleRecentNumbers(w http.ResponseWriter, r *http.Request) {
	count := 10
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}
	writeJSON(w, http.StatusOK, s.deps.Book.Recent(count))
}

func (s *Server) handleBroadcastList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Broadcast.List())
}

func (s *Server) handleBroadcastStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.deps.Broadcast.Status(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "broadcast job not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBroadcastEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name,omitempty"`
		Numbers     []string `json:"numbers,omitempty"`
		NumbersText string   `json:"numbersText,omitempty"`
		Message     string   `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	numbers := append([]string(nil), req.Numbers...)
	numbers = append(numbers, broadcast.SplitNumbers(req.NumbersText)...)
	for _, n := range numbers {
		if !broadcast.ValidNumber(n) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid number %q", n))
			return
		}
	}
	if len(numbers) == 0 || req.Message == "" {
		writeError(w, http.StatusBadRequest, "numbers and message are required")
		return
	}

	id, err := s.deps.Broadcast.Enqueue(req.Name, numbers, req.Message)
	if errors.Is(err, broadcast.ErrQueueFull) {
		writeError(w, http.StatusServiceUnavailable, "broadcast queue full")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	numbers, err := broadcast.ParseNumbers(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse %s: %v", hdr.Filename, err))
		return
	}
	s.log.Info("numbers file parsed",
		logx.String("file", hdr.Filename),
		logx.Int("numbers", len(numbers)))
	writeJSON(w, http.StatusOK, map[string]any{"numbers": numbers, "count": len(numbers)})
}
