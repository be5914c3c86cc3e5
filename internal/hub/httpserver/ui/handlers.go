// Package ui serves the hub's pages and htmx fragments.
package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/auth"
	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/content"
	"musanzehub.com/hub-web/internal/hub/form"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
	"musanzehub.com/hub-web/internal/hub/submission"
	"musanzehub.com/hub-web/internal/hub/templates"
)

// Deps wires the page handlers to their collaborators.
type Deps struct {
	Auth      *auth.Gateway
	Renderer  *templates.Renderer
	Catalogue *content.Catalogue
	Bookings  bookings.Service
	Drafts    form.DraftStore
	Pipeline  *submission.Pipeline
	// SubmissionDelay paces stub submissions so the pending state is visible.
	SubmissionDelay time.Duration
	Now             func() time.Time
}

// Handlers renders pages.
type Handlers struct {
	auth      *auth.Gateway
	renderer  *templates.Renderer
	catalogue *content.Catalogue
	bookings  bookings.Service
	drafts    form.DraftStore
	pipeline  *submission.Pipeline
	delay     time.Duration
	now       func() time.Time
}

// New constructs the page handlers. Every dependency in Deps is required except Now.
func New(deps Deps) *Handlers {
	if deps.Auth == nil || deps.Renderer == nil || deps.Catalogue == nil || deps.Bookings == nil || deps.Drafts == nil || deps.Pipeline == nil {
		panic("ui: auth, renderer, catalogue, bookings, drafts and pipeline are required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		auth:      deps.Auth,
		renderer:  deps.Renderer,
		catalogue: deps.Catalogue,
		bookings:  deps.Bookings,
		drafts:    deps.Drafts,
		pipeline:  deps.Pipeline,
		delay:     deps.SubmissionDelay,
		now:       now,
	}
}

// Pipeline exposes the shared submission pipeline.
func (h *Handlers) Pipeline() *submission.Pipeline {
	return h.pipeline
}

// Layout builds the chrome for the current request.
func (h *Handlers) Layout(r *http.Request, title string) templates.Layout {
	ctx := r.Context()
	state := custommw.StateFromRequest(r)
	layout := templates.Layout{
		Title:     title,
		Path:      custommw.RequestPathFromContext(ctx),
		CSRFToken: custommw.CSRFTokenFromContext(ctx),
		Ready:     state.Ready,
		User:      state.Identity,
		Nav:       templates.MainNav,
	}
	if sess, ok := appsession.FromContext(ctx); ok {
		layout.Flash = sess.PopFlash()
	}
	return layout
}

// Render writes c with status.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request, c templ.Component, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// Page renders a full page.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request, name string, data any, status int) {
	h.Render(w, r, h.renderer.Page(name, data), status)
}

// Fragment renders an htmx fragment.
func (h *Handlers) Fragment(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.Render(w, r, h.renderer.Fragment(name, data), http.StatusOK)
}

// LoadFlow restores the visitor's draft for def, or starts a fresh one.
func (h *Handlers) LoadFlow(r *http.Request, def *form.Definition) *form.Flow {
	sess, ok := appsession.FromContext(r.Context())
	if !ok {
		return form.NewFlow(def, nil)
	}
	state, err := h.drafts.Load(r.Context(), sess.ID(), def.Name)
	if err != nil {
		if !errors.Is(err, form.ErrNoDraft) {
			observability.FromContext(r.Context()).Warn("draft load failed",
				zap.String("form", def.Name),
				zap.Error(err),
			)
		}
		state = nil
	}
	return form.NewFlow(def, state)
}

// SaveFlow persists the flow's non-secret state.
func (h *Handlers) SaveFlow(r *http.Request, flow *form.Flow) {
	sess, ok := appsession.FromContext(r.Context())
	if !ok {
		return
	}
	name := flow.Definition().Name
	if err := h.drafts.Save(r.Context(), sess.ID(), name, flow.Persistable()); err != nil {
		observability.FromContext(r.Context()).Warn("draft save failed",
			zap.String("form", name),
			zap.Error(err),
		)
	}
}

// DiscardFlow removes the visitor's draft for form.
func (h *Handlers) DiscardFlow(r *http.Request, name string) {
	sess, ok := appsession.FromContext(r.Context())
	if !ok {
		return
	}
	if err := h.drafts.Delete(r.Context(), sess.ID(), name); err != nil {
		observability.FromContext(r.Context()).Warn("draft delete failed",
			zap.String("form", name),
			zap.Error(err),
		)
	}
}

// MoveDrafts re-keys drafts after the session id rotates.
func (h *Handlers) MoveDrafts(ctx context.Context, fromID, toID string, names ...string) {
	for _, name := range names {
		state, err := h.drafts.Load(ctx, fromID, name)
		if err != nil {
			continue
		}
		if err := h.drafts.Save(ctx, toID, name, state); err != nil {
			observability.FromContext(ctx).Warn("draft move failed", zap.String("form", name), zap.Error(err))
			continue
		}
		_ = h.drafts.Delete(ctx, fromID, name)
	}
}

// SubmitKey scopes single-flight submissions to one visitor and form.
func SubmitKey(r *http.Request, formName string) string {
	if sess, ok := appsession.FromContext(r.Context()); ok {
		return sess.ID() + ":" + formName
	}
	return formName
}

// PostedValues collects names from the parsed form. Repeated values are comma-joined
// and missing names read as empty so required rules fire.
func PostedValues(r *http.Request, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		values := r.PostForm[name]
		switch len(values) {
		case 0:
			out[name] = ""
		case 1:
			out[name] = values[0]
		default:
			out[name] = form.JoinList(values)
		}
	}
	return out
}

// StepFieldNames lists the fields on the flow's current step.
func StepFieldNames(flow *form.Flow) []string {
	step := flow.Definition().Steps[flow.State().CurrentStep-1]
	names := make([]string, 0, len(step.Fields))
	for _, f := range step.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Home renders the landing page.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, "home", templates.HomePage{
		Layout:       h.Layout(r, ""),
		Gallery:      h.catalogue.GalleryPreview(6),
		Testimonials: h.catalogue.Testimonials(),
		Partners:     h.catalogue.Partners(),
	}, http.StatusOK)
}

// NotFound renders the unknown-route page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, "notfound", templates.NotFoundPage{Layout: h.Layout(r, "Page not found")}, http.StatusNotFound)
}

// Loading renders the placeholder shown while the identity check is unresolved.
func (h *Handlers) Loading(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, "loading", templates.LoadingPage{Layout: h.Layout(r, "Loading")}, http.StatusOK)
}

func (h *Handlers) stubCall() submission.Call {
	return submission.Delay(h.delay)
}
