package stats

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updates, "expected update channel to be initialized")
	assert.NotNil(t, su.counters, "expected counters map to be initialized")

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_Counters(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("TestCounter")

	su.Run()
	defer su.Stop()

	su.Incr("TestCounter")
	su.Incr("TestCounter")
	su.Decr("TestCounter")

	assert.Eventually(t, func() bool {
		return su.counters["TestCounter"].Value() == 1
	}, time.Second, 10*time.Millisecond, "expected counter to converge to 1")
}

func TestStatsUpdater_UnknownMetricIgnored(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("Known")

	su.Run()
	defer su.Stop()

	su.Incr("Unknown")
	su.Incr("Known")

	assert.Eventually(t, func() bool {
		return su.counters["Known"].Value() == 1
	}, time.Second, 10*time.Millisecond, "expected known counter to be applied")
}

func TestStatsUpdater_NeverBlocks(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("TestCounter")

	// not running, so the queue fills up and further updates are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(su.updates)+10; i++ {
			su.Incr("TestCounter")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("expected updates to be dropped rather than block the reporter")
	}
}
