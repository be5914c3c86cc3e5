package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	appointmentsCollection   = "appointments"
	talentRequestsCollection = "talentRequests"
)

// FirestoreService persists bookings in Cloud Firestore.
type FirestoreService struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestoreService binds the service to a client.
func NewFirestoreService(client *firestore.Client, now func() time.Time) (*FirestoreService, error) {
	if client == nil {
		return nil, errors.New("bookings: firestore client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &FirestoreService{client: client, now: now}, nil
}

// CreateAppointment stores a pending appointment under a new ULID.
func (s *FirestoreService) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	appt, err := normalizeAppointment(appt)
	if err != nil {
		return Appointment{}, err
	}
	now := s.now().UTC()
	appt.ID = newID()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	if _, err := s.client.Collection(appointmentsCollection).Doc(appt.ID).Create(ctx, appt); err != nil {
		return Appointment{}, wrapError("appointments.create", err)
	}
	return appt, nil
}

// ListAppointments returns the user's appointments ordered by most recent creation.
func (s *FirestoreService) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	iter := s.client.Collection(appointmentsCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var results []Appointment
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapError("appointments.list", err)
		}
		appt, err := decodeAppointment(snap)
		if err != nil {
			return nil, err
		}
		results = append(results, appt)
	}
	return results, nil
}

// CancelAppointment transitions the user's appointment to cancelled inside a transaction.
func (s *FirestoreService) CancelAppointment(ctx context.Context, userID, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrNotFound
	}
	ref := s.client.Collection(appointmentsCollection).Doc(id)

	var saved Appointment
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		appt, err := decodeAppointment(snap)
		if err != nil {
			return err
		}
		if appt.UserID != strings.TrimSpace(userID) {
			return ErrNotFound
		}
		if !appt.Status.Cancellable() {
			return ErrInvalidTransition
		}
		appt.Status = StatusCancelled
		appt.UpdatedAt = s.now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(appt.Status)},
			{Path: "updatedAt", Value: appt.UpdatedAt},
		}); err != nil {
			return err
		}
		saved = appt
		return nil
	})
	if err != nil {
		return Appointment{}, wrapError("appointments.cancel", err)
	}
	return saved, nil
}

// CreateTalentRequest stores a hiring enquiry under a new ULID.
func (s *FirestoreService) CreateTalentRequest(ctx context.Context, req TalentRequest) (TalentRequest, error) {
	req, err := normalizeTalentRequest(req)
	if err != nil {
		return TalentRequest{}, err
	}
	req.ID = newID()
	req.CreatedAt = s.now().UTC()

	if _, err := s.client.Collection(talentRequestsCollection).Doc(req.ID).Create(ctx, req); err != nil {
		return TalentRequest{}, wrapError("talent_requests.create", err)
	}
	return req, nil
}

func decodeAppointment(snap *firestore.DocumentSnapshot) (Appointment, error) {
	var appt Appointment
	if err := snap.DataTo(&appt); err != nil {
		return Appointment{}, fmt.Errorf("bookings: decode appointment %s: %w", snap.Ref.ID, err)
	}
	appt.ID = snap.Ref.ID
	return appt, nil
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return fmt.Errorf("bookings: %s: %w", op, err)
}
