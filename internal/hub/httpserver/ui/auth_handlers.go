package ui

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/auth"
	"musanzehub.com/hub-web/internal/hub/form"
	"musanzehub.com/hub-web/internal/hub/guard"
	custommw "musanzehub.com/hub-web/internal/hub/httpserver/middleware"
	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/observability"
	appsession "musanzehub.com/hub-web/internal/hub/session"
	"musanzehub.com/hub-web/internal/hub/templates"
)

const (
	// DashboardPath is where visitors land after signing in without a return target.
	DashboardPath = "/dashboard"
	// LoggedOutStatus is the query value shown after sign-out.
	LoggedOutStatus = "logged_out"
	// SignedOutMessage greets the visitor on the sign-in page after sign-out.
	SignedOutMessage = "You have been signed out."
)

// Drafts that follow the visitor across the session id rotation at sign-in.
var carriedDrafts = []string{form.AppointmentForm, form.HireForm}

func (h *Handlers) visitor(r *http.Request) auth.Visitor {
	var v auth.Visitor
	if store, ok := appsession.StoreFromContext(r.Context()); ok {
		v.Store = store
	}
	if sess, ok := appsession.FromContext(r.Context()); ok {
		v.Session = sess
	}
	return v
}

// signedIn rotates the session id and carries deferred drafts over to it.
func (h *Handlers) signedIn(r *http.Request) {
	sess, ok := appsession.FromContext(r.Context())
	if !ok {
		return
	}
	oldID := sess.ID()
	sess.RotateID()
	h.MoveDrafts(r.Context(), oldID, sess.ID(), carriedDrafts...)
}

func afterSignIn(next string) string {
	if next = guard.SanitizeNext(next); next != "" {
		return next
	}
	return DashboardPath
}

// SigninForm renders the sign-in page. Signed-in visitors continue to their destination.
func (h *Handlers) SigninForm(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if state := custommw.StateFromRequest(r); state.Authenticated() {
		custommw.Redirect(w, r, afterSignIn(query.Get("next")), http.StatusSeeOther)
		return
	}

	flow := form.NewFlow(form.Signin(), nil)
	if email := strings.TrimSpace(query.Get("email")); email != "" {
		flow.SetField("email", email)
	}
	message := ""
	if query.Get("status") == LoggedOutStatus {
		message = SignedOutMessage
	}
	h.renderSignin(w, r, flow, guard.SanitizeNext(query.Get("next")), message, http.StatusOK)
}

// SigninSubmit authenticates the visitor against the identity service.
func (h *Handlers) SigninSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	def := form.Signin()
	flow := form.NewFlow(def, nil)
	flow.SetFields(PostedValues(r, def.FieldNames()))
	next := guard.SanitizeNext(r.PostForm.Get("next"))

	v := h.visitor(r)
	err := flow.Submit(r.Context(), h.pipeline, SubmitKey(r, form.SigninForm), func(ctx context.Context, values map[string]string) error {
		_, err := h.auth.Login(ctx, v, strings.TrimSpace(values["email"]), values["password"])
		return err
	})
	if err == nil && flow.State().Outcome.Succeeded() {
		h.signedIn(r)
		observability.FromContext(r.Context()).Info("visitor signed in")
		custommw.Redirect(w, r, afterSignIn(next), http.StatusSeeOther)
		return
	}
	h.renderSignin(w, r, flow, next, "", statusForSubmit(err))
}

func (h *Handlers) renderSignin(w http.ResponseWriter, r *http.Request, flow *form.Flow, next, message string, status int) {
	h.Page(w, r, "signin", templates.SigninPage{
		Layout:  h.Layout(r, "Sign in"),
		Form:    templates.NewFormView(flow),
		Next:    next,
		Message: message,
	}, status)
}

// SignupForm renders the registration wizard at the visitor's saved step.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	if state := custommw.StateFromRequest(r); state.Authenticated() {
		custommw.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	flow := h.LoadFlow(r, form.Signup())
	h.renderSignup(w, r, flow, "", http.StatusOK)
}

// SignupSubmit moves the wizard back or forward, or registers on the final step.
func (h *Handlers) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	flow := h.LoadFlow(r, form.Signup())
	flow.ResetOutcome()

	switch r.PostForm.Get("action") {
	case "back":
		flow.SetFields(presentValues(r, StepFieldNames(flow)))
		flow.Back()
		h.SaveFlow(r, flow)
		h.renderSignup(w, r, flow, "", http.StatusOK)
	case "submit":
		h.signupRegister(w, r, flow)
	default:
		flow.SetFields(PostedValues(r, StepFieldNames(flow)))
		status := http.StatusOK
		if !flow.Next() && flow.State().CurrentStep < flow.Definition().StepCount() {
			status = http.StatusUnprocessableEntity
		}
		h.SaveFlow(r, flow)
		h.renderSignup(w, r, flow, "", status)
	}
}

func (h *Handlers) signupRegister(w http.ResponseWriter, r *http.Request, flow *form.Flow) {
	flow.SetFields(PostedValues(r, StepFieldNames(flow)))

	v := h.visitor(r)
	var callErr error
	err := flow.Submit(r.Context(), h.pipeline, SubmitKey(r, form.SignupForm), func(ctx context.Context, values map[string]string) error {
		_, callErr = h.auth.RegisterAndLogin(ctx, v, identity.Registration{
			FirstName:   strings.TrimSpace(values["firstName"]),
			LastName:    strings.TrimSpace(values["lastName"]),
			Email:       strings.TrimSpace(values["email"]),
			Password:    values["password"],
			DateOfBirth: strings.TrimSpace(values["dateOfBirth"]),
			PhoneNumber: strings.TrimSpace(values["phoneNumber"]),
			Address:     strings.TrimSpace(values["address"]),
		})
		return callErr
	})

	if err == nil && flow.State().Outcome.Succeeded() {
		h.DiscardFlow(r, form.SignupForm)
		h.signedIn(r)
		observability.FromContext(r.Context()).Info("visitor signed up")
		custommw.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}

	signinHref := ""
	if errors.Is(callErr, auth.ErrAccountCreated) || identity.IsKind(callErr, identity.KindConflict) {
		signinHref = guard.SignInPath + "?" + url.Values{"email": {flow.State().Value("email")}}.Encode()
	}
	if callErr != nil {
		observability.FromContext(r.Context()).Info("sign-up failed",
			zap.String("kind", string(identity.KindOf(callErr))),
			zap.Bool("account_created", errors.Is(callErr, auth.ErrAccountCreated)),
		)
	}
	if !concurrentSubmit(err) {
		h.SaveFlow(r, flow)
	}
	h.renderSignup(w, r, flow, signinHref, statusForSubmit(err))
}

// SignupValidate re-checks one field and returns its inline error fragment.
func (h *Handlers) SignupValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	def := form.Signup()
	name := custommw.HTMXInfoFromContext(r.Context()).TriggerName
	if name == "" {
		name = r.PostForm.Get("field")
	}
	if _, ok := def.Field(name); !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	flow := h.LoadFlow(r, def)
	values := presentValues(r, StepFieldNames(flow))
	values[name] = r.PostForm.Get(name)
	flow.SetFields(values)
	h.SaveFlow(r, flow)

	h.Fragment(w, r, "field-error", templates.FieldError{Name: name, Error: flow.State().Error(name)})
}

// Signout clears the visitor's identity and returns them to sign-in.
func (h *Handlers) Signout(w http.ResponseWriter, r *http.Request) {
	v := h.visitor(r)
	h.auth.Logout(r.Context(), v)
	if v.Session != nil {
		v.Session.RotateID()
	}
	observability.FromContext(r.Context()).Info("visitor signed out")
	target := guard.SignInPath + "?" + url.Values{"status": {LoggedOutStatus}}.Encode()
	custommw.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handlers) renderSignup(w http.ResponseWriter, r *http.Request, flow *form.Flow, signinHref string, status int) {
	h.Page(w, r, "signup", templates.SignupPage{
		Layout:     h.Layout(r, "Sign up"),
		Form:       templates.NewFormView(flow),
		SigninHref: signinHref,
	}, status)
}

// presentValues keeps only the non-empty posted names, so untouched fields stay unvalidated.
func presentValues(r *http.Request, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for name, value := range PostedValues(r, names) {
		if value != "" {
			out[name] = value
		}
	}
	return out
}
