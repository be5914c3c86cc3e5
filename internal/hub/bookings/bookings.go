// Package bookings stores appointment bookings and talent requests made
// through the hub's public forms.
package bookings

import (
	"context"
	"errors"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"musanzehub.com/hub-web/internal/hub/form"
)

var (
	// ErrNotFound indicates the appointment does not exist for the caller.
	ErrNotFound = errors.New("bookings: not found")
	// ErrInvalidTransition indicates a status change that is not allowed.
	ErrInvalidTransition = errors.New("bookings: invalid status transition")
	// ErrInvalid indicates the record is missing required data.
	ErrInvalid = errors.New("bookings: invalid record")
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Cancellable reports whether the visitor may still cancel.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is a visit booked through the appointment form.
type Appointment struct {
	ID        string    `firestore:"-"`
	UserID    string    `firestore:"userId"`
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Phone     string    `firestore:"phone"`
	Purpose   string    `firestore:"purpose"`
	Date      string    `firestore:"date"`
	Time      string    `firestore:"time"`
	Message   string    `firestore:"message"`
	Status    Status    `firestore:"status"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// TalentRequest is a hiring enquiry sent through the hire-talent form.
type TalentRequest struct {
	ID          string    `firestore:"-"`
	UserID      string    `firestore:"userId"`
	CompanyName string    `firestore:"companyName"`
	ContactName string    `firestore:"contactName"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone"`
	JobTitle    string    `firestore:"jobTitle"`
	JobType     string    `firestore:"jobType"`
	Skills      []string  `firestore:"skills"`
	Description string    `firestore:"description"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// Service persists bookings.
type Service interface {
	CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]Appointment, error)
	CancelAppointment(ctx context.Context, userID, id string) (Appointment, error)
	CreateTalentRequest(ctx context.Context, req TalentRequest) (TalentRequest, error)
}

// AppointmentFromValues maps appointment form values to a record.
func AppointmentFromValues(userID string, values map[string]string) Appointment {
	return Appointment{
		UserID:  userID,
		Name:    values["name"],
		Email:   values["email"],
		Phone:   values["phone"],
		Purpose: values["purpose"],
		Date:    values["date"],
		Time:    values["time"],
		Message: values["message"],
	}
}

// TalentRequestFromValues maps hire form values to a record.
func TalentRequestFromValues(userID string, values map[string]string) TalentRequest {
	return TalentRequest{
		UserID:      userID,
		CompanyName: values["companyName"],
		ContactName: values["contactName"],
		Email:       values["email"],
		Phone:       values["phone"],
		JobTitle:    values["jobTitle"],
		JobType:     values["jobType"],
		Skills:      form.SplitList(values["skills"]),
		Description: values["description"],
	}
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// clean strips markup; templates escape on output so entities are decoded here.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict().Sanitize(strings.TrimSpace(s))))
}

func normalizeAppointment(appt Appointment) (Appointment, error) {
	appt.UserID = strings.TrimSpace(appt.UserID)
	appt.Name = clean(appt.Name)
	appt.Email = strings.ToLower(strings.TrimSpace(appt.Email))
	appt.Phone = strings.TrimSpace(appt.Phone)
	appt.Purpose = strings.TrimSpace(appt.Purpose)
	appt.Date = strings.TrimSpace(appt.Date)
	appt.Time = strings.TrimSpace(appt.Time)
	appt.Message = clean(appt.Message)
	if appt.UserID == "" || appt.Name == "" || appt.Email == "" || appt.Date == "" || appt.Time == "" {
		return Appointment{}, ErrInvalid
	}
	if appt.Status == "" {
		appt.Status = StatusPending
	}
	return appt, nil
}

func normalizeTalentRequest(req TalentRequest) (TalentRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.CompanyName = clean(req.CompanyName)
	req.ContactName = clean(req.ContactName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.JobTitle = clean(req.JobTitle)
	req.JobType = strings.TrimSpace(req.JobType)
	req.Description = clean(req.Description)
	skills := make([]string, 0, len(req.Skills))
	for _, s := range req.Skills {
		if s = clean(s); s != "" {
			skills = append(skills, s)
		}
	}
	req.Skills = skills
	if req.CompanyName == "" || req.Email == "" || req.Description == "" || len(req.Skills) == 0 {
		return TalentRequest{}, ErrInvalid
	}
	return req, nil
}

func newID() string {
	return ulid.Make().String()
}
