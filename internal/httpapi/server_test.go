package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/geo"
	"firstview-tracker/internal/locations"
	"firstview-tracker/internal/tracker"
	"firstview-tracker/internal/viewport"
)

type fakeSession struct {
	account  string
	signInFn func(account, password string) error
	signOuts int
}

func (s *fakeSession) SignIn(_ context.Context, account, password string) error {
	if s.signInFn != nil {
		if err := s.signInFn(account, password); err != nil {
			return err
		}
	}
	s.account = account
	return nil
}

func (s *fakeSession) SignOut(context.Context) error {
	s.signOuts++
	s.account = ""
	return nil
}

func (s *fakeSession) SignedIn() bool  { return s.account != "" }
func (s *fakeSession) Account() string { return s.account }

type fakeTracker struct {
	snapshot  tracker.Snapshot
	running   bool
	refreshes int
	focused   string
	tracked   int
}

func (t *fakeTracker) Snapshot() tracker.Snapshot { return t.snapshot }

func (t *fakeTracker) Refresh() bool {
	t.refreshes++
	return t.running
}

func (t *fakeTracker) Focus(riderID string) (viewport.Plan, error) {
	if riderID != "42" {
		return viewport.Plan{}, goerrors.New("unknown rider", goerrors.CategoryNotFound).
			WithCode(http.StatusNotFound).WithTextCode(tracker.TextCodeRiderNotFound)
	}
	t.focused = riderID
	return viewport.Apply(nil, []geo.Point{{Latitude: 0.5, Longitude: 0.5}, {Latitude: 10, Longitude: 10}}), nil
}

func (t *fakeTracker) TrackVehicle(riderID string, index int) (viewport.Plan, error) {
	t.tracked = index
	return viewport.Fit([]geo.Point{{Latitude: 40, Longitude: -75}}), nil
}

type fakeNotifications struct {
	resp *firstview.NotificationResponse
	err  error
}

func (n *fakeNotifications) GetNotifications(context.Context) (*firstview.NotificationResponse, error) {
	return n.resp, n.err
}

type fixedRegion geo.Region

func (r fixedRegion) Region() geo.Region { return geo.Region(r) }

func newTestServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(d))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Deps{Session: &fakeSession{}, Tracker: &fakeTracker{}})
	resp, body := do(t, srv, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	sess := &fakeSession{}
	trk := &fakeTracker{running: true}
	srv := newTestServer(t, Deps{Session: sess, Tracker: trk})

	if _, body := do(t, srv, http.MethodGet, "/api/session", ""); body["signedIn"] != false {
		t.Fatalf("expected signed out, got %v", body)
	}

	resp, body := do(t, srv, http.MethodPost, "/api/session", `{"account":"parent@example.com","password":"pw"}`)
	if resp.StatusCode != http.StatusOK || body["signedIn"] != true || body["account"] != "parent@example.com" {
		t.Fatalf("unexpected sign-in response: %d %v", resp.StatusCode, body)
	}
	if trk.refreshes != 1 {
		t.Fatalf("sign-in should trigger a refresh, got %d", trk.refreshes)
	}

	resp, _ = do(t, srv, http.MethodDelete, "/api/session", "")
	if resp.StatusCode != http.StatusNoContent || sess.signOuts != 1 || sess.SignedIn() {
		t.Fatalf("unexpected sign-out: %d", resp.StatusCode)
	}
}

func TestSignInFailureRendersErrorEnvelope(t *testing.T) {
	sess := &fakeSession{signInFn: func(string, string) error {
		return goerrors.New("Invalid credentials", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).WithTextCode("SIGN_IN_FAILED")
	}}
	srv := newTestServer(t, Deps{Session: sess, Tracker: &fakeTracker{}})

	resp, body := do(t, srv, http.MethodPost, "/api/session", `{"account":"a","password":"b"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body["textCode"] != "SIGN_IN_FAILED" || body["message"] != "Invalid credentials" {
		t.Fatalf("unexpected error body: %v", body)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/session", `{not json`)
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "Invalid request body" {
		t.Fatalf("expected bad request for malformed body, got %d %v", resp.StatusCode, body)
	}
}

func TestRidersAndRefresh(t *testing.T) {
	trk := &fakeTracker{snapshot: tracker.Snapshot{
		Riders: []locations.RiderGroup{{RiderID: "42", Name: "Ana Lee"}},
		Points: []geo.Point{{Latitude: 1, Longitude: 2}},
	}}
	srv := newTestServer(t, Deps{Session: &fakeSession{}, Tracker: trk})

	resp, body := do(t, srv, http.MethodGet, "/api/riders", "")
	riders, _ := body["riders"].([]any)
	if resp.StatusCode != http.StatusOK || len(riders) != 1 {
		t.Fatalf("unexpected riders response: %d %v", resp.StatusCode, body)
	}

	if resp, _ := do(t, srv, http.MethodPost, "/api/refresh", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on stopped tracker, got %d", resp.StatusCode)
	}
	trk.running = true
	if resp, _ := do(t, srv, http.MethodPost, "/api/refresh", ""); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
}

func TestFocusAndTrack(t *testing.T) {
	trk := &fakeTracker{}
	srv := newTestServer(t, Deps{Session: &fakeSession{}, Tracker: trk})

	resp, body := do(t, srv, http.MethodPost, "/api/riders/42/focus", "")
	if resp.StatusCode != http.StatusOK || body["action"] != "fit" || body["applied"] != false {
		t.Fatalf("unexpected focus response: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/riders/7/focus", "")
	if resp.StatusCode != http.StatusNotFound || body["textCode"] != tracker.TextCodeRiderNotFound {
		t.Fatalf("unexpected unknown rider response: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/riders/42/vehicles/2/track", "")
	if resp.StatusCode != http.StatusOK || body["action"] != "animate" || trk.tracked != 2 {
		t.Fatalf("unexpected track response: %d %v", resp.StatusCode, body)
	}
	region, _ := body["region"].(map[string]any)
	if region["latitude"] != float64(40) || region["latitudeDelta"] != viewport.DefaultSpan {
		t.Fatalf("unexpected track region: %v", region)
	}

	if resp, _ := do(t, srv, http.MethodPost, "/api/riders/42/vehicles/first/track", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad index, got %d", resp.StatusCode)
	}
}

func TestViewportAndNotifications(t *testing.T) {
	notes := &fakeNotifications{resp: &firstview.NotificationResponse{
		Result: []firstview.Notification{{ID: 1, Title: "Snow day"}},
	}}
	srv := newTestServer(t, Deps{
		Session:       &fakeSession{},
		Tracker:       &fakeTracker{},
		Notifications: notes,
		Viewport:      fixedRegion{CenterLatitude: 1, CenterLongitude: 2, LatitudeSpan: 3, LongitudeSpan: 4},
	})

	_, body := do(t, srv, http.MethodGet, "/api/viewport", "")
	if body["latitude"] != float64(1) || body["longitudeDelta"] != float64(4) {
		t.Fatalf("unexpected viewport: %v", body)
	}

	resp, body := do(t, srv, http.MethodGet, "/api/notifications", "")
	result, _ := body["result"].([]any)
	if resp.StatusCode != http.StatusOK || len(result) != 1 {
		t.Fatalf("unexpected notifications: %d %v", resp.StatusCode, body)
	}

	notes.err = errors.New("boom")
	if resp, body := do(t, srv, http.MethodGet, "/api/notifications", ""); resp.StatusCode != http.StatusInternalServerError || body["message"] != "Internal server error" {
		t.Fatalf("plain errors should be hidden behind a 500, got %d %v", resp.StatusCode, body)
	}
}

func TestOptionalHandlers(t *testing.T) {
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	srv := newTestServer(t, Deps{Session: &fakeSession{}, Tracker: &fakeTracker{}, Metrics: metrics})
	if resp, _ := do(t, srv, http.MethodGet, "/metrics", ""); resp.StatusCode != http.StatusOK || !called {
		t.Fatalf("metrics handler not mounted")
	}
	if resp, _ := do(t, srv, http.MethodGet, "/ws", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without map hub, got %d", resp.StatusCode)
	}
}
