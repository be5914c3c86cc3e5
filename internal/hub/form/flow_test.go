package form

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"musanzehub.com/hub-web/internal/hub/submission"
)

func validSignupValues() map[string]string {
	return map[string]string{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"dateOfBirth":     "1990-12-10",
		"email":           "ada@example.com",
		"phoneNumber":     "+250 788 000 000",
		"address":         "Musanze, Rwanda",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}
}

func TestSignupStepOneRejectsEmptyFirstName(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), nil)
	flow.SetField("lastName", "Lovelace")
	flow.SetField("dateOfBirth", "1990-12-10")

	require.False(t, flow.Next())
	require.Equal(t, 1, flow.State().CurrentStep)
	require.Equal(t, "First name is required", flow.State().Error("firstName"))
}

func TestSignupWizardAdvancesAndGoesBack(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), nil)
	flow.SetFields(validSignupValues())

	require.True(t, flow.Next())
	require.Equal(t, 2, flow.State().CurrentStep)
	require.True(t, flow.Next())
	require.Equal(t, 3, flow.State().CurrentStep)
	require.False(t, flow.Next(), "final step never advances")
	require.Equal(t, 3, flow.State().CurrentStep)

	flow.SetField("email", "broken")
	require.True(t, flow.Back(), "back never revalidates")
	require.Equal(t, 2, flow.State().CurrentStep)
	require.True(t, flow.Back())
	require.False(t, flow.Back())
	require.Equal(t, 1, flow.State().CurrentStep)
}

func TestPasswordConfirmationRecheckedWhenEitherSideChanges(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), nil)
	flow.SetField("password", "secret1")
	flow.SetField("confirmPassword", "secret1")
	require.Empty(t, flow.State().Error("confirmPassword"))

	flow.SetField("password", "secret2")
	require.Equal(t, "Passwords do not match", flow.State().Error("confirmPassword"))

	flow.SetField("confirmPassword", "secret2")
	require.Empty(t, flow.State().Error("confirmPassword"))
}

func TestErrorsReflectLastAppliedValue(t *testing.T) {
	t.Parallel()

	def := Signup()
	candidates := map[string][]string{
		"firstName":       {"", "Ada", "   "},
		"email":           {"", "ada@example.com", "nope", "x@y.z", "ADA@EXAMPLE.ORG"},
		"phoneNumber":     {"", "+250788000000", "abc"},
		"password":        {"", "abc", "secret1", "secret2"},
		"confirmPassword": {"", "secret1", "secret2"},
		"dateOfBirth":     {"", "1990-12-10", "10/12/1990"},
	}
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		flow := NewFlow(def, nil)
		for i := 0; i < 30; i++ {
			name := names[rng.Intn(len(names))]
			opts := candidates[name]
			flow.SetField(name, opts[rng.Intn(len(opts))])

			// Compare each touched field's error with a fresh evaluation of its rules.
			for touched := range flow.State().Values {
				want := expectedError(def, touched, flow.State().Values)
				require.Equal(t, want, flow.State().Error(touched), "run %d field %s", run, touched)
			}
		}
	}
}

func expectedError(def *Definition, name string, values map[string]string) string {
	field, _ := def.Field(name)
	value := values[name]
	if !field.Secret {
		value = strings.TrimSpace(value)
	}
	for _, rule := range field.Rules {
		if msg := rule.Check(value, values); msg != "" {
			return msg
		}
	}
	return ""
}

func TestSubmitRequiresFinalStepAndValidity(t *testing.T) {
	t.Parallel()

	pipeline := submission.New()
	flow := NewFlow(Signup(), nil)
	flow.SetFields(validSignupValues())

	err := flow.Submit(context.Background(), pipeline, "k", func(context.Context, map[string]string) error { return nil })
	require.ErrorIs(t, err, ErrNotFinalStep)

	flow.State().CurrentStep = 3
	flow.SetField("email", "")
	err = flow.Submit(context.Background(), pipeline, "k", func(context.Context, map[string]string) error { return nil })
	require.ErrorIs(t, err, ErrInvalid)
	require.Equal(t, "Email is required", flow.State().Error("email"))
}

func TestSubmitSuccessClearsValues(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), nil)
	flow.SetFields(validSignupValues())
	flow.State().CurrentStep = 3

	var received map[string]string
	err := flow.Submit(context.Background(), submission.New(), "k", func(_ context.Context, values map[string]string) error {
		received = values
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, validSignupValues(), received)

	state := flow.State()
	require.Empty(t, state.Values)
	require.Equal(t, submission.Success(), state.Outcome)
	require.False(t, state.Submitting)

	// A later attempt starts from idle again.
	flow.SetField("firstName", "Grace")
	require.Equal(t, submission.Success(), state.Outcome)
	err = flow.Submit(context.Background(), submission.New(), "k", func(context.Context, map[string]string) error { return nil })
	require.ErrorIs(t, err, ErrNotFinalStep)
	require.Equal(t, submission.Success(), flow.State().Outcome)
}

func TestSubmitFailureKeepsValuesAndClearsOnRetry(t *testing.T) {
	t.Parallel()

	appointment := Appointment(AppointmentOptions{
		Purposes:  []string{"coworking"},
		TimeSlots: []string{"09:00 AM"},
		Now:       func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) },
	})
	flow := NewFlow(appointment, nil)
	flow.SetFields(map[string]string{
		"name":    "Ada",
		"email":   "ada@example.com",
		"phone":   "+250788000000",
		"purpose": "coworking",
		"date":    "2025-05-02",
		"time":    "09:00 AM",
	})

	pipeline := submission.New()
	err := flow.Submit(context.Background(), pipeline, "k", func(context.Context, map[string]string) error {
		return &submission.Error{Message: "Failed to book appointment. Please try again later."}
	})
	require.NoError(t, err)
	require.Equal(t, submission.Failure("Failed to book appointment. Please try again later."), flow.State().Outcome)
	require.Equal(t, "Ada", flow.State().Value("name"))

	var observed submission.Outcome
	err = flow.Submit(context.Background(), pipeline, "k", func(context.Context, map[string]string) error {
		observed = flow.State().Outcome
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, submission.Idle(), observed, "previous failure cleared when a new attempt begins")
	require.True(t, flow.State().Outcome.Succeeded())
}

func TestSubmitIsNoOpWhileSubmitting(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signin(), nil)
	flow.SetFields(map[string]string{"email": "ada@example.com", "password": "pw"})

	var calls atomic.Int32
	call := func(context.Context, map[string]string) error {
		calls.Add(1)
		return nil
	}

	flow.State().Submitting = true
	require.ErrorIs(t, flow.Submit(context.Background(), submission.New(), "k", call), ErrSubmitting)
	require.Zero(t, calls.Load())

	flow.State().Submitting = false
	require.NoError(t, flow.Submit(context.Background(), submission.New(), "k", call))
	require.Equal(t, int32(1), calls.Load())
}

type busyRunner struct{}

func (busyRunner) Run(context.Context, string, submission.Call) (submission.Outcome, error) {
	return submission.Outcome{}, submission.ErrInFlight
}

func TestSubmitSurfacesInFlight(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signin(), nil)
	flow.SetFields(map[string]string{"email": "ada@example.com", "password": "pw"})

	err := flow.Submit(context.Background(), busyRunner{}, "k", func(context.Context, map[string]string) error { return nil })
	require.True(t, errors.Is(err, submission.ErrInFlight))
	require.False(t, flow.State().Submitting)
	require.Equal(t, "ada@example.com", flow.State().Value("email"))
}

func TestPersistableDropsSecrets(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), nil)
	flow.SetFields(validSignupValues())

	persisted := flow.Persistable()
	require.NotContains(t, persisted.Values, "password")
	require.NotContains(t, persisted.Values, "confirmPassword")
	require.Equal(t, "Ada", persisted.Values["firstName"])
	require.Equal(t, "secret1", flow.State().Value("password"))
}

func TestNewFlowRepairsState(t *testing.T) {
	t.Parallel()

	flow := NewFlow(Signup(), &State{CurrentStep: 9})
	require.Equal(t, 3, flow.State().CurrentStep)
	require.NotNil(t, flow.State().Values)
	require.Equal(t, submission.StatusIdle, flow.State().Outcome.Status)

	flow.SetField("unknown", "x")
	require.NotContains(t, flow.State().Values, "unknown")
}
