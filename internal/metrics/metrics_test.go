package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorAdapters(t *testing.T) {
	c := NewCollector(10 * time.Second)

	c.TokenRefreshInc("ok")
	c.TokenRefreshInc("ok")
	c.TokenRefreshInc("skipped")
	c.FetchObserve("ok", 120*time.Millisecond)
	c.FetchObserve("stale", time.Second)
	c.SnapshotSet(3, 7)
	c.ViewportFitInc("fit")
	c.MapClientsSet(2)
	c.NATSPublishedInc()
	c.NATSPublishErrInc()
	c.NATSSetConnected(true)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"refresh_ok", testutil.ToFloat64(c.TokenRefreshes.WithLabelValues("ok")), 2},
		{"refresh_skipped", testutil.ToFloat64(c.TokenRefreshes.WithLabelValues("skipped")), 1},
		{"fetch_ok", testutil.ToFloat64(c.Fetches.WithLabelValues("ok")), 1},
		{"fetch_stale", testutil.ToFloat64(c.Fetches.WithLabelValues("stale")), 1},
		{"riders", testutil.ToFloat64(c.Riders), 3},
		{"points", testutil.ToFloat64(c.Points), 7},
		{"fits", testutil.ToFloat64(c.ViewportFits.WithLabelValues("fit")), 1},
		{"map_clients", testutil.ToFloat64(c.MapClients), 2},
		{"nats_published", testutil.ToFloat64(c.NATSPublished), 1},
		{"nats_errors", testutil.ToFloat64(c.NATSPublishErrs), 1},
		{"nats_connected", testutil.ToFloat64(c.NATSConnected), 1},
		{"poll_interval", testutil.ToFloat64(c.PollInterval), 10},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, tc.got)
		}
	}

	c.NATSSetConnected(false)
	if v := testutil.ToFloat64(c.NATSConnected); v != 0 {
		t.Fatalf("expected disconnected gauge, got %v", v)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector(5 * time.Second)
	c.MapClientsSet(1)
	c.FetchObserve("ok", 50*time.Millisecond)
	c.FetchObserve("stale", 50*time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"tracker_map_clients 1",
		"tracker_poll_interval_seconds 5",
		`tracker_fetches_total{result="stale"} 1`,
		"tracker_fetch_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output missing %q", name)
		}
	}
}
