package ui

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/bookings"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
	"musanzehub.com/hub-web/internal/hub/templates"
)

const defaultDashboardTab = "overview"

// Dashboard renders the signed-in area. It sits behind the guard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	state := custommw.StateFromRequest(r)
	tab := normalizeTab(r.URL.Query().Get("tab"))

	page := templates.DashboardPage{
		Layout:   h.Layout(r, "Dashboard"),
		Tab:      tab,
		Tabs:     templates.DashboardTabs,
		Services: h.catalogue.Services(),
	}

	if tab == "overview" || tab == "appointments" {
		appts, err := h.bookings.ListAppointments(r.Context(), state.Identity.ID)
		if err != nil {
			observability.FromContext(r.Context()).Error("list appointments failed", zap.Error(err))
			page.LoadError = "We could not load your appointments. Please try again later."
		}
		label := h.catalogue.Options().PurposeLabel
		today := h.now().Format("2006-01-02")
		for _, appt := range appts {
			page.Appointments = append(page.Appointments, templates.NewAppointmentView(appt, label))
			if appt.Status.Cancellable() && appt.Date >= today {
				page.Upcoming++
			}
		}
	}

	h.Page(w, r, "dashboard", page, http.StatusOK)
}

// CancelAppointment cancels one of the visitor's appointments.
func (h *Handlers) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	state := custommw.StateFromRequest(r)
	id := chi.URLParam(r, "appointmentID")
	logger := observability.FromContext(r.Context()).With(zap.String("appointment_id", id))

	message := "Your appointment was cancelled."
	if _, err := h.bookings.CancelAppointment(r.Context(), state.Identity.ID, id); err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			http.NotFound(w, r)
			return
		case errors.Is(err, bookings.ErrInvalidTransition):
			message = "This appointment can no longer be cancelled."
		default:
			logger.Error("cancel appointment failed", zap.Error(err))
			message = "We could not cancel your appointment. Please try again later."
		}
	} else {
		logger.Info("appointment cancelled")
	}

	if sess, ok := appsession.FromContext(r.Context()); ok {
		sess.SetFlash(message)
	}
	custommw.Redirect(w, r, "/dashboard?tab=appointments", http.StatusSeeOther)
}

func normalizeTab(tab string) string {
	for _, t := range templates.DashboardTabs {
		if t.ID == tab {
			return tab
		}
	}
	return defaultDashboardTab
}
