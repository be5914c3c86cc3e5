package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryService keeps bookings in process memory.
type MemoryService struct {
	mu           sync.Mutex
	appointments map[string]Appointment
	requests     map[string]TalentRequest
	now          func() time.Time
	idGen        func() string
}

// NewMemoryService constructs an empty store. A nil clock uses time.Now.
func NewMemoryService(now func() time.Time) *MemoryService {
	if now == nil {
		now = time.Now
	}
	return &MemoryService{
		appointments: make(map[string]Appointment),
		requests:     make(map[string]TalentRequest),
		now:          now,
		idGen:        newID,
	}
}

// CreateAppointment stores a pending appointment.
func (s *MemoryService) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}
	appt, err := normalizeAppointment(appt)
	if err != nil {
		return Appointment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	appt.ID = s.idGen()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	s.appointments[appt.ID] = appt
	return appt, nil
}

// ListAppointments returns the user's appointments, newest first.
func (s *MemoryService) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, appt := range s.appointments {
		if appt.UserID == userID {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CancelAppointment marks the user's appointment cancelled.
func (s *MemoryService) CancelAppointment(ctx context.Context, userID, id string) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[strings.TrimSpace(id)]
	if !ok || appt.UserID != strings.TrimSpace(userID) {
		return Appointment{}, ErrNotFound
	}
	if !appt.Status.Cancellable() {
		return Appointment{}, ErrInvalidTransition
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = s.now().UTC()
	s.appointments[appt.ID] = appt
	return appt, nil
}

// CreateTalentRequest stores a hiring enquiry.
func (s *MemoryService) CreateTalentRequest(ctx context.Context, req TalentRequest) (TalentRequest, error) {
	if err := ctx.Err(); err != nil {
		return TalentRequest{}, err
	}
	req, err := normalizeTalentRequest(req)
	if err != nil {
		return TalentRequest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = s.idGen()
	req.CreatedAt = s.now().UTC()
	s.requests[req.ID] = req
	return req, nil
}

// TalentRequests returns every stored request.
func (s *MemoryService) TalentRequests() []TalentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TalentRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
