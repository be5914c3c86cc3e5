package templates

import (
	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/content"
	"musanzehub.com/hub-web/internal/hub/form"
	"musanzehub.com/hub-web/internal/hub/identity"
)

// NavItem is one header link.
type NavItem struct {
	Label string
	Href  string
}

// MainNav lists the public header links.
var MainNav = []NavItem{
	{Label: "Home", Href: "/"},
	{Label: "Gallery", Href: "/gallery"},
	{Label: "Hire Talent", Href: "/hire-talent"},
	{Label: "Book a Visit", Href: "/appointment"},
}

// Layout carries the chrome shared by every page.
type Layout struct {
	Title     string
	Path      string
	CSRFToken string
	// Ready is false while the visitor's identity check is unresolved.
	Ready bool
	User  *identity.Identity
	Flash string
	Nav   []NavItem
}

// SignedIn reports whether the header should show the dashboard links.
func (l Layout) SignedIn() bool {
	return l.Ready && !l.User.Empty()
}

// PageTitle formats the document title.
func (l Layout) PageTitle() string {
	if l.Title == "" {
		return "Musanze Innovation Hub"
	}
	return l.Title + " | Musanze Innovation Hub"
}

// FormView is the render-only projection of a form.Flow.
type FormView struct {
	Name       string
	Step       int
	StepCount  int
	StepTitle  string
	StepTitles []string
	Values     map[string]string
	Errors     map[string]string
	Banner     string
	Success    bool
	Submitting bool
}

// NewFormView projects the flow, dropping secret values.
func NewFormView(flow *form.Flow) FormView {
	def := flow.Definition()
	state := flow.State()
	view := FormView{
		Name:       def.Name,
		Step:       state.CurrentStep,
		StepCount:  def.StepCount(),
		Values:     make(map[string]string, len(state.Values)),
		Errors:     make(map[string]string, len(state.Errors)),
		Success:    state.Outcome.Succeeded(),
		Submitting: state.Submitting,
	}
	if state.Outcome.Failed() {
		view.Banner = state.Outcome.Message
	}
	for i, step := range def.Steps {
		view.StepTitles = append(view.StepTitles, step.Title)
		if i+1 == state.CurrentStep {
			view.StepTitle = step.Title
		}
	}
	for name, value := range state.Values {
		if field, ok := def.Field(name); ok && field.Secret {
			continue
		}
		view.Values[name] = value
	}
	for name, msg := range state.Errors {
		view.Errors[name] = msg
	}
	return view
}

// FinalStep reports whether the submit button should be shown.
func (f FormView) FinalStep() bool {
	return f.Step >= f.StepCount
}

// Selected reports whether choice is part of the comma-joined list in field.
func (f FormView) Selected(field, choice string) bool {
	for _, v := range form.SplitList(f.Values[field]) {
		if v == choice {
			return true
		}
	}
	return false
}

// FieldError is the htmx fragment for inline validation.
type FieldError struct {
	Name  string
	Error string
}

// HomePage is the landing page.
type HomePage struct {
	Layout
	Gallery      []content.GalleryItem
	Testimonials []content.Testimonial
	Partners     []content.Partner
}

// GalleryPage lists gallery items for one category.
type GalleryPage struct {
	Layout
	Categories []content.Choice
	Active     string
	Items      []content.GalleryItem
}

// HirePage shows talent profiles and the hiring form.
type HirePage struct {
	Layout
	Profiles []content.TalentProfile
	Form     FormView
	JobTypes []content.Choice
	// Popular skills render as quick picks; Skills holds the rest.
	Popular []string
	Skills  []string
}

// SigninPage is the sign-in form.
type SigninPage struct {
	Layout
	Form    FormView
	Next    string
	Message string
}

// SignupPage is the three-step registration wizard.
type SignupPage struct {
	Layout
	Form FormView
	// SigninHref is set when the visitor should continue on the sign-in page.
	SigninHref string
}

// AppointmentPage is the booking form.
type AppointmentPage struct {
	Layout
	Form      FormView
	Purposes  []content.Choice
	TimeSlots []string
	MinDate   string
	Booked    *AppointmentView
}

// AppointmentView is a booking prepared for display.
type AppointmentView struct {
	ID          string
	Purpose     string
	Date        string
	Time        string
	Status      string
	StatusLabel string
	Message     string
	CanCancel   bool
}

// NewAppointmentView resolves labels for display.
func NewAppointmentView(appt bookings.Appointment, purposeLabel func(string) string) AppointmentView {
	label := appt.Purpose
	if purposeLabel != nil {
		label = purposeLabel(appt.Purpose)
	}
	return AppointmentView{
		ID:          appt.ID,
		Purpose:     label,
		Date:        appt.Date,
		Time:        appt.Time,
		Status:      string(appt.Status),
		StatusLabel: statusLabel(appt.Status),
		Message:     appt.Message,
		CanCancel:   appt.Status.Cancellable(),
	}
}

func statusLabel(s bookings.Status) string {
	switch s {
	case bookings.StatusPending:
		return "Pending"
	case bookings.StatusConfirmed:
		return "Confirmed"
	case bookings.StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// DashboardTab is one dashboard section.
type DashboardTab struct {
	ID    string
	Label string
}

// DashboardTabs lists the dashboard sections in display order.
var DashboardTabs = []DashboardTab{
	{ID: "overview", Label: "Overview"},
	{ID: "appointments", Label: "Appointments"},
	{ID: "services", Label: "Services"},
	{ID: "profile", Label: "Profile"},
}

// DashboardPage is the signed-in area.
type DashboardPage struct {
	Layout
	Tab          string
	Tabs         []DashboardTab
	Appointments []AppointmentView
	Upcoming     int
	Services     []content.Service
	LoadError    string
}

// LoadingPage is shown while the identity check is unresolved.
type LoadingPage struct {
	Layout
}

// NotFoundPage is the unknown-route page.
type NotFoundPage struct {
	Layout
}
