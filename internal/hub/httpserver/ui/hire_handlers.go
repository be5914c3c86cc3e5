package ui

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/form"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/observability"
	"musanzehub.com/hub-web/internal/hub/submission"
	"musanzehub.com/hub-web/internal/hub/templates"
)

func (h *Handlers) hireDefinition() *form.Definition {
	opts := h.catalogue.Options()
	return form.Hire(form.HireOptions{JobTypes: opts.JobTypeIDs(), Skills: opts.Skills})
}

// HireTalent renders the talent profiles and the request form.
func (h *Handlers) HireTalent(w http.ResponseWriter, r *http.Request) {
	flow := h.LoadFlow(r, h.hireDefinition())
	if flow.State().Outcome.Succeeded() {
		flow.ResetOutcome()
	}
	h.renderHire(w, r, flow, http.StatusOK)
}

// HireTalentSubmit validates and stores a talent request.
func (h *Handlers) HireTalentSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	def := h.hireDefinition()
	flow := h.LoadFlow(r, def)
	flow.ResetOutcome()
	flow.SetFields(PostedValues(r, def.FieldNames()))

	userID := ""
	if state := custommw.StateFromRequest(r); state.Authenticated() {
		userID = state.Identity.ID
	}

	err := flow.Submit(r.Context(), h.pipeline, SubmitKey(r, form.HireForm), func(ctx context.Context, values map[string]string) error {
		if err := h.stubCall()(ctx); err != nil {
			return err
		}
		req, err := h.bookings.CreateTalentRequest(ctx, bookings.TalentRequestFromValues(userID, values))
		if err != nil {
			return &submission.Error{Err: err}
		}
		observability.FromContext(ctx).Info("talent request stored", zap.String("request_id", req.ID))
		return nil
	})
	status := statusForSubmit(err)
	if concurrentSubmit(err) {
		// Another tab is submitting the same request; show the form without touching the draft.
		h.renderHire(w, r, flow, status)
		return
	}
	h.settleFlow(r, flow)
	h.renderHire(w, r, flow, status)
}

// TalentProfile renders the profile modal fragment.
func (h *Handlers) TalentProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "profileID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	profile, err := h.catalogue.TalentProfile(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.Fragment(w, r, "profile-modal", profile)
}

func (h *Handlers) renderHire(w http.ResponseWriter, r *http.Request, flow *form.Flow, status int) {
	opts := h.catalogue.Options()
	h.Page(w, r, "hire", templates.HirePage{
		Layout:   h.Layout(r, "Hire Talent"),
		Profiles: h.catalogue.Talent(),
		Form:     templates.NewFormView(flow),
		JobTypes: opts.JobTypes,
		Popular:  opts.Popular(),
		Skills:   opts.OtherSkills(),
	}, status)
}

// settleFlow drops the draft after a successful submission and keeps it otherwise.
func (h *Handlers) settleFlow(r *http.Request, flow *form.Flow) {
	if flow.State().Outcome.Succeeded() {
		h.DiscardFlow(r, flow.Definition().Name)
		return
	}
	h.SaveFlow(r, flow)
}

// concurrentSubmit reports whether another request owns the submission.
func concurrentSubmit(err error) bool {
	return errors.Is(err, submission.ErrInFlight) || errors.Is(err, form.ErrSubmitting)
}

// statusForSubmit maps a Submit result to the response status. A failed outcome
// still renders the page with its banner.
func statusForSubmit(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, form.ErrInvalid), errors.Is(err, form.ErrNotFinalStep):
		return http.StatusUnprocessableEntity
	case concurrentSubmit(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
