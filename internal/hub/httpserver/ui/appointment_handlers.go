package ui

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/form"
	"musanzehub.com/hub-web/internal/hub/guard"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
	"musanzehub.com/hub-web/internal/hub/submission"
	"musanzehub.com/hub-web/internal/hub/templates"
)

// AppointmentPath is the booking page.
const AppointmentPath = "/appointment"

// DeferredAppointmentMessage is flashed when a booking waits for sign-in.
const DeferredAppointmentMessage = "Please sign in to finish booking. We saved your appointment details."

func (h *Handlers) appointmentDefinition() *form.Definition {
	opts := h.catalogue.Options()
	return form.Appointment(form.AppointmentOptions{
		Purposes:  opts.PurposeIDs(),
		TimeSlots: opts.TimeSlots,
		Now:       h.now,
	})
}

// Appointment renders the booking form, restoring any deferred draft.
func (h *Handlers) Appointment(w http.ResponseWriter, r *http.Request) {
	flow := h.LoadFlow(r, h.appointmentDefinition())
	if flow.State().Outcome.Succeeded() || r.URL.Query().Get("new") != "" {
		flow.ResetOutcome()
	}

	if state := custommw.StateFromRequest(r); state.Authenticated() {
		if flow.State().Value("name") == "" && state.Identity.Name != "" {
			flow.SetField("name", state.Identity.Name)
		}
		if flow.State().Value("email") == "" && state.Identity.Email != "" {
			flow.SetField("email", state.Identity.Email)
		}
	}
	h.renderAppointment(w, r, flow, nil, http.StatusOK)
}

// AppointmentSubmit books the visit. A visitor who is no longer signed in keeps
// the values as a deferred draft and is sent to sign in first.
func (h *Handlers) AppointmentSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	def := h.appointmentDefinition()
	flow := h.LoadFlow(r, def)
	flow.ResetOutcome()
	flow.SetFields(PostedValues(r, def.FieldNames()))

	state := custommw.StateFromRequest(r)
	if !state.Authenticated() {
		h.deferAppointment(w, r, flow, state)
		return
	}

	var booked *bookings.Appointment
	err := flow.Submit(r.Context(), h.pipeline, SubmitKey(r, form.AppointmentForm), func(ctx context.Context, values map[string]string) error {
		if err := h.stubCall()(ctx); err != nil {
			return err
		}
		appt, err := h.bookings.CreateAppointment(ctx, bookings.AppointmentFromValues(state.Identity.ID, values))
		if err != nil {
			return &submission.Error{Err: err}
		}
		observability.FromContext(ctx).Info("appointment booked",
			zap.String("appointment_id", appt.ID),
			zap.String("purpose", appt.Purpose),
		)
		booked = &appt
		return nil
	})
	status := statusForSubmit(err)
	if concurrentSubmit(err) {
		h.renderAppointment(w, r, flow, nil, status)
		return
	}
	h.settleFlow(r, flow)

	var view *templates.AppointmentView
	if booked != nil {
		v := templates.NewAppointmentView(*booked, h.catalogue.Options().PurposeLabel)
		view = &v
	}
	h.renderAppointment(w, r, flow, view, status)
}

func (h *Handlers) deferAppointment(w http.ResponseWriter, r *http.Request, flow *form.Flow, state appsession.State) {
	h.SaveFlow(r, flow)
	if sess, ok := appsession.FromContext(r.Context()); ok {
		sess.SetFlash(DeferredAppointmentMessage)
	}
	observability.FromContext(r.Context()).Info("appointment deferred until sign-in")

	target := AppointmentPath
	if state.Ready {
		target = guard.SignInURL(AppointmentPath)
	}
	custommw.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handlers) renderAppointment(w http.ResponseWriter, r *http.Request, flow *form.Flow, booked *templates.AppointmentView, status int) {
	opts := h.catalogue.Options()
	h.Page(w, r, "appointment", templates.AppointmentPage{
		Layout:    h.Layout(r, "Book a Visit"),
		Form:      templates.NewFormView(flow),
		Purposes:  opts.Purposes,
		TimeSlots: opts.TimeSlots,
		MinDate:   h.now().Format(form.DateLayout),
		Booked:    booked,
	}, status)
}
