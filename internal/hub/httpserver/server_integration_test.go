package httpserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musanzehub.com/hub-web/internal/hub/bookings"
	"musanzehub.com/hub-web/internal/hub/identity"
	"musanzehub.com/hub-web/internal/hub/testutil"
)

var fixedNow = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func signupValues(step int, email string) url.Values {
	switch step {
	case 1:
		return url.Values{
			"action":      {"next"},
			"firstName":   {"Aline"},
			"lastName":    {"Uwase"},
			"dateOfBirth": {"1998-04-12"},
		}
	case 2:
		return url.Values{
			"action":      {"next"},
			"email":       {email},
			"phoneNumber": {"+250 788 123 456"},
			"address":     {"KN 3 Rd, Musanze"},
		}
	default:
		return url.Values{
			"action":          {"submit"},
			"password":        {"s3cret-pass"},
			"confirmPassword": {"s3cret-pass"},
		}
	}
}

// signUp walks the wizard and returns the final response.
func signUp(t *testing.T, c *testutil.Client, email string) testutil.Response {
	t.Helper()

	require.Equal(t, http.StatusOK, c.Get("/signup").StatusCode)
	resp := c.Post("/signup", signupValues(1, email))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = c.Post("/signup", signupValues(2, email))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "3", resp.Doc(t).Find("[data-step]").AttrOr("data-step", ""))
	return c.Post("/signup", signupValues(3, email))
}

func appointmentValues() url.Values {
	return url.Values{
		"name":    {"Aline Uwase"},
		"email":   {"aline@example.com"},
		"phone":   {"+250788123456"},
		"purpose": {"coworking"},
		"date":    {"2026-10-20"},
		"time":    {"10:00 AM"},
		"message": {"Bring laptop & charger"},
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/healthz")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(resp.Body))
}

func TestStaticAssetsAreServed(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/public/static/css/site.css")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "--brand")
}

func TestHomeRendersForAnonymousVisitor(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	doc := resp.Doc(t)
	require.Equal(t, "Musanze Innovation Hub", doc.Find("title").First().Text())
	require.Equal(t, 1, doc.Find(`[data-account] a[href="/signin"]`).Length())
	require.Equal(t, 1, doc.Find(`[data-account] a[href="/signup"]`).Length())
	require.Zero(t, doc.Find(`form[action="/signout"]`).Length())
	require.Equal(t, 6, doc.Find(".gallery-card").Length())
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/no-such-page")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Page not found | Musanze Innovation Hub", resp.Doc(t).Find("title").Text())
}

func TestGalleryFiltersByCategory(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)

	all := c.Get("/gallery").Doc(t)
	require.Equal(t, 12, all.Find(".gallery-card").Length())

	events := c.Get("/gallery?category=events").Doc(t)
	require.Greater(t, events.Find(".gallery-card").Length(), 0)
	events.Find(".gallery-card").Each(func(_ int, card *goquery.Selection) {
		require.Equal(t, "events", card.AttrOr("data-category", ""))
	})

	unknown := c.Get("/gallery?category=unknown").Doc(t)
	require.Equal(t, 12, unknown.Find(".gallery-card").Length())
}

func TestGalleryItemFragment(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)

	resp := c.Get("/gallery/items/1", "HX-Request", "true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, resp.Doc(t).Find(".modal").Length())
	require.NotContains(t, string(resp.Body), "<html")

	require.Equal(t, http.StatusNotFound, c.Get("/gallery/items/999", "HX-Request", "true").StatusCode)
}

func TestDashboardRedirectsWithoutAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/dashboard")

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/signin?next=%2Fdashboard", resp.Header.Get("Location"))
}

func TestGuardedRouteRedirectsHTMXWithHeader(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp := testutil.NewClient(t, ts).Get("/appointment", "HX-Request", "true")

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/signin?next=%2Fappointment", resp.Header.Get("HX-Redirect"))
}

func TestGuardShowsLoadingWhileIdentityUnresolved(t *testing.T) {
	t.Parallel()

	var unavailable atomic.Bool
	verifier := identity.VerifierFunc(func(_ context.Context, claimed *identity.Identity, _ identity.Credential) (*identity.Identity, error) {
		if unavailable.Load() {
			return nil, identity.NewAuthError(identity.KindNetwork, errors.New("identity service unavailable"))
		}
		return claimed, nil
	})
	ts := testutil.NewServer(t, testutil.WithVerifier(verifier))
	c := testutil.NewClient(t, ts)

	resp := signUp(t, c, "aline@example.com")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	unavailable.Store(true)
	resp = c.Get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
	require.Equal(t, "2", resp.Header.Get("Refresh"))

	doc := resp.Doc(t)
	require.Equal(t, 1, doc.Find("[data-loading]").Length())
	require.Zero(t, doc.Find(`[data-account] a[href="/signin"]`).Length(), "no sign-in link before the check resolves")

	unavailable.Store(false)
	resp = c.Get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, resp.Doc(t).Find(`[data-panel="overview"]`).Length())
}

func TestUnsafeRequestWithForgedCSRFTokenIsRejected(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)
	c.Get("/")

	resp := c.Post("/signin", url.Values{"csrf_token": {"forged"}, "email": {"a@example.com"}, "password": {"x"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSignupStepOneRejectsEmptyFirstName(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)
	c.Get("/signup")

	values := signupValues(1, "")
	values.Set("firstName", "")
	resp := c.Post("/signup", values)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	doc := resp.Doc(t)
	require.Equal(t, "1", doc.Find("[data-step]").AttrOr("data-step", ""))
	require.Equal(t, "First name is required", doc.Find("#error-firstName").Text())
	require.Empty(t, doc.Find("#error-lastName").Text())
}

func TestSignupBackKeepsValuesWithoutRevalidating(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)
	c.Get("/signup")
	c.Post("/signup", signupValues(1, ""))

	resp := c.Post("/signup", url.Values{"action": {"back"}, "email": {"not-an-email"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := resp.Doc(t)
	require.Equal(t, "1", doc.Find("[data-step]").AttrOr("data-step", ""))
	require.Equal(t, "Aline", doc.Find(`input[name="firstName"]`).AttrOr("value", ""))
}

func TestSignupValidateFragment(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)
	c.Get("/signup")
	c.Post("/signup", signupValues(1, ""))

	resp := c.Post("/signup/validate",
		url.Values{"email": {"nope"}},
		"HX-Request", "true", "HX-Trigger-Name", "email",
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Invalid email address", resp.Doc(t).Find("#error-email").Text())

	direct := c.Post("/signup/validate", url.Values{"field": {"email"}, "email": {"nope"}})
	require.Equal(t, http.StatusNotFound, direct.StatusCode)
}

func TestSignupRegistersSignsInAndRedirects(t *testing.T) {
	t.Parallel()

	identities := identity.NewMemoryService()
	ts := testutil.NewServer(t, testutil.WithIdentities(identities))
	c := testutil.NewClient(t, ts)

	resp := signUp(t, c, "aline@example.com")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
	require.Equal(t, 1, identities.ActiveSessions())
	require.NotContains(t, string(resp.Body), "s3cret-pass")

	dash := c.Get("/dashboard?tab=profile")
	require.Equal(t, http.StatusOK, dash.StatusCode)
	doc := dash.Doc(t)
	require.Equal(t, "Aline Uwase", doc.Find("[data-profile-name]").Text())
	require.Equal(t, "aline@example.com", doc.Find("[data-profile-email]").Text())
	require.Equal(t, 1, doc.Find(`form[action="/signout"]`).Length())

	// Signed-in visitors skip the wizard.
	again := c.Get("/signup")
	require.Equal(t, http.StatusSeeOther, again.StatusCode)
}

func TestSignupConflictKeepsVisitorSignedOut(t *testing.T) {
	t.Parallel()

	identities := identity.NewMemoryService()
	_, err := identities.Register(context.Background(), identity.Registration{
		FirstName: "Existing", LastName: "Member", Email: "aline@example.com", Password: "whatever1",
	})
	require.NoError(t, err)

	ts := testutil.NewServer(t, testutil.WithIdentities(identities))
	c := testutil.NewClient(t, ts)

	resp := signUp(t, c, "aline@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Zero(t, identities.ActiveSessions())

	doc := resp.Doc(t)
	require.Equal(t, "An account with this email already exists. Please sign in instead.", doc.Find("[data-banner]").Text())
	require.Equal(t, "/signin?email=aline%40example.com", doc.Find(".banner-action a").AttrOr("href", ""))
	require.Zero(t, doc.Find(`input[type="password"][value]`).Length())

	require.Equal(t, http.StatusFound, c.Get("/dashboard").StatusCode)
}

func TestSigninRejectsInvalidCredentials(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)
	c.Get("/signin")

	resp := c.Post("/signin", url.Values{"email": {"ghost@example.com"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := resp.Doc(t)
	require.Equal(t, "Invalid email or password.", doc.Find("[data-banner]").Text())
	require.Equal(t, "ghost@example.com", doc.Find(`input[name="email"]`).AttrOr("value", ""))
}

func TestSignoutReturnsToSignin(t *testing.T) {
	t.Parallel()

	identities := identity.NewMemoryService()
	ts := testutil.NewServer(t, testutil.WithIdentities(identities))
	c := testutil.NewClient(t, ts)
	require.Equal(t, http.StatusSeeOther, signUp(t, c, "aline@example.com").StatusCode)
	c.Get("/dashboard")

	resp := c.Post("/signout", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/signin?status=logged_out", resp.Header.Get("Location"))
	require.Zero(t, identities.ActiveSessions())

	page := c.Get("/signin?status=logged_out")
	require.Equal(t, "You have been signed out.", page.Doc(t).Find("[data-message]").Text())
	require.Equal(t, http.StatusFound, c.Get("/dashboard").StatusCode)
}

func TestAppointmentDeferredUntilSignin(t *testing.T) {
	t.Parallel()

	identities := identity.NewMemoryService()
	acct, err := identities.Register(context.Background(), identity.Registration{
		FirstName: "Aline", LastName: "Uwase", Email: "aline@example.com", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	store := bookings.NewMemoryService(clock)

	ts := testutil.NewServer(t,
		testutil.WithIdentities(identities),
		testutil.WithBookings(store),
		testutil.WithClock(clock),
	)
	c := testutil.NewClient(t, ts)
	c.Get("/")

	resp := c.Post("/appointment", appointmentValues())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/signin?next=%2Fappointment", resp.Header.Get("Location"))

	page := c.Get("/signin?next=%2Fappointment")
	doc := page.Doc(t)
	require.Equal(t, "/appointment", doc.Find(`input[name="next"]`).AttrOr("value", ""))
	require.Contains(t, doc.Find(".flash").Text(), "We saved your appointment details")

	resp = c.Post("/signin", url.Values{
		"email":    {"aline@example.com"},
		"password": {"s3cret-pass"},
		"next":     {"/appointment"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/appointment", resp.Header.Get("Location"))

	form := c.Get("/appointment")
	require.Equal(t, http.StatusOK, form.StatusCode)
	doc = form.Doc(t)
	require.Equal(t, "Aline Uwase", doc.Find(`input[name="name"]`).AttrOr("value", ""))
	require.Equal(t, "2026-10-20", doc.Find(`input[name="date"]`).AttrOr("value", ""))
	require.Equal(t, "coworking", doc.Find(`select[name="purpose"] option[selected]`).AttrOr("value", ""))

	appts, err := store.ListAppointments(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Empty(t, appts, "nothing is booked before confirmation")

	booked := c.Post("/appointment", appointmentValues())
	require.Equal(t, http.StatusOK, booked.StatusCode)
	require.Equal(t, 1, booked.Doc(t).Find("[data-success]").Length())

	appts, err = store.ListAppointments(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, "Bring laptop & charger", appts[0].Message)
	require.Equal(t, bookings.StatusPending, appts[0].Status)
}

func TestDashboardListsAndCancelsAppointments(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithClock(clock))
	c := testutil.NewClient(t, ts)
	require.Equal(t, http.StatusSeeOther, signUp(t, c, "aline@example.com").StatusCode)

	form := c.Get("/appointment")
	require.Equal(t, "Aline Uwase", form.Doc(t).Find(`input[name="name"]`).AttrOr("value", ""))
	require.Equal(t, http.StatusOK, c.Post("/appointment", appointmentValues()).StatusCode)

	overview := c.Get("/dashboard").Doc(t)
	require.Equal(t, "1", strings.TrimSpace(overview.Find("[data-upcoming]").Text()))

	list := c.Get("/dashboard?tab=appointments").Doc(t)
	card := list.Find("[data-appointment]")
	require.Equal(t, 1, card.Length())
	require.Equal(t, "pending", card.AttrOr("data-status", ""))
	id := card.AttrOr("data-appointment", "")
	require.NotEmpty(t, id)

	resp := c.Post("/dashboard/appointments/"+id+"/cancel", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard?tab=appointments", resp.Header.Get("Location"))

	list = c.Get("/dashboard?tab=appointments").Doc(t)
	require.Equal(t, "cancelled", list.Find("[data-appointment]").AttrOr("data-status", ""))
	require.Equal(t, "Your appointment was cancelled.", list.Find(".flash").Text())
	require.Zero(t, list.Find(`form[action$="/cancel"]`).Length())

	require.Equal(t, http.StatusNotFound, c.Post("/dashboard/appointments/unknown/cancel", nil).StatusCode)
}

func TestAppointmentRejectsPastDates(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithClock(clock))
	c := testutil.NewClient(t, ts)
	require.Equal(t, http.StatusSeeOther, signUp(t, c, "aline@example.com").StatusCode)
	c.Get("/appointment")

	values := appointmentValues()
	values.Set("date", "2026-10-01")
	resp := c.Post("/appointment", values)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "Choose today or a later date", resp.Doc(t).Find("#error-date").Text())
}

func hireValues() url.Values {
	return url.Values{
		"companyName": {"Volcano Labs"},
		"contactName": {"Eric Mugabo"},
		"email":       {"eric@volcanolabs.rw"},
		"phone":       {"+250 722 000 111"},
		"jobTitle":    {"Frontend Developer"},
		"jobType":     {"full-time"},
		"skills":      {"React", "TypeScript"},
		"description": {"Build the <b>customer</b> portal."},
	}
}

func TestHireTalentSubmission(t *testing.T) {
	t.Parallel()

	store := bookings.NewMemoryService(clock)
	ts := testutil.NewServer(t, testutil.WithBookings(store))
	c := testutil.NewClient(t, ts)

	page := c.Get("/hire-talent").Doc(t)
	require.Equal(t, 4, page.Find("[data-profile]").Length())

	invalid := hireValues()
	invalid.Del("skills")
	resp := c.Post("/hire-talent", invalid)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "Please select at least one skill", resp.Doc(t).Find("#error-skills").Text())
	require.Empty(t, store.TalentRequests())

	resp = c.Post("/hire-talent", hireValues())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, resp.Doc(t).Find("[data-success]").Length())

	reqs := store.TalentRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, []string{"React", "TypeScript"}, reqs[0].Skills)
	require.Equal(t, "Build the customer portal.", reqs[0].Description)

	// Returning to the page shows an empty form again.
	fresh := c.Get("/hire-talent").Doc(t)
	require.Zero(t, fresh.Find("[data-success]").Length())
	require.Empty(t, fresh.Find(`input[name="companyName"]`).AttrOr("value", ""))
}

// unavailableBookings fails talent requests until recovered.
type unavailableBookings struct {
	*bookings.MemoryService
	down atomic.Bool
}

func (b *unavailableBookings) CreateTalentRequest(ctx context.Context, req bookings.TalentRequest) (bookings.TalentRequest, error) {
	if b.down.Load() {
		return bookings.TalentRequest{}, errors.New("datastore unavailable")
	}
	return b.MemoryService.CreateTalentRequest(ctx, req)
}

func TestHireTalentRetryClearsPreviousFailure(t *testing.T) {
	t.Parallel()

	store := &unavailableBookings{MemoryService: bookings.NewMemoryService(clock)}
	store.down.Store(true)
	ts := testutil.NewServer(t, testutil.WithBookings(store))
	c := testutil.NewClient(t, ts)
	c.Get("/hire-talent")

	resp := c.Post("/hire-talent", hireValues())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, resp.Doc(t).Find("[data-banner]").Length())

	invalid := hireValues()
	invalid.Del("skills")
	resp = c.Post("/hire-talent", invalid)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	doc := resp.Doc(t)
	require.Zero(t, doc.Find("[data-banner]").Length())
	require.Equal(t, "Please select at least one skill", doc.Find("#error-skills").Text())

	store.down.Store(false)
	resp = c.Post("/hire-talent", hireValues())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = resp.Doc(t)
	require.Zero(t, doc.Find("[data-banner]").Length())
	require.Equal(t, 1, doc.Find("[data-success]").Length())
	require.Len(t, store.TalentRequests(), 1)
}

func TestHireTalentDoubleSubmitRunsOnce(t *testing.T) {
	t.Parallel()

	store := bookings.NewMemoryService(clock)
	ts := testutil.NewServer(t,
		testutil.WithBookings(store),
		testutil.WithSubmissionDelay(300*time.Millisecond),
	)
	c := testutil.NewClient(t, ts)
	c.Get("/hire-talent")

	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 1 {
				time.Sleep(50 * time.Millisecond)
			}
			statuses[i] = c.Post("/hire-talent", hireValues()).StatusCode
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, statuses)
	require.Len(t, store.TalentRequests(), 1)
}

func TestTalentProfileFragment(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	c := testutil.NewClient(t, ts)

	resp := c.Get("/hire-talent/profiles/1", "HX-Request", "true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Doc(t).Find(".modal").Text(), "Experience")

	require.Equal(t, http.StatusNotFound, c.Get("/hire-talent/profiles/abc").StatusCode)
}
