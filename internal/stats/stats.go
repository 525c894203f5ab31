package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// StatsProvider is the counter surface the relay reports into.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater owns a set of expvar counters and applies every update
// from a single goroutine. Reporters never block: an update that
// cannot be queued is dropped, since a stale counter is preferable to
// a stalled relay.
type StatsUpdater struct {
	vars     *expvar.Map
	counters map[string]*expvar.Int
	updates  chan metricDelta
	done     chan struct{}
}

type metricDelta struct {
	name  string
	delta int64
}

// publishedMap returns the exported map, reusing and resetting an
// already published one since expvar panics on duplicate names.
func publishedMap(name string) *expvar.Map {
	if v := expvar.Get(name); v != nil {
		if m, ok := v.(*expvar.Map); ok {
			m.Init()
			return m
		}
	}
	return expvar.NewMap(name)
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:     publishedMap("convochat-stats"),
		counters: make(map[string]*expvar.Int),
		updates:  make(chan metricDelta, 512),
		done:     make(chan struct{}),
	}
	mux.HandleFunc("GET /debug/vars", su.expvarHandler)

	startTime := time.Now()
	su.vars.Set("UptimeSeconds", expvar.Func(func() any {
		return int64(time.Since(startTime).Seconds())
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	out := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		out[kv.Key] = value
	})

	json.NewEncoder(w).Encode(out)
}

// RegisterMetric publishes a named counter. All metrics must be
// registered before Run is called.
func (su *StatsUpdater) RegisterMetric(name string) {
	counter := new(expvar.Int)
	su.counters[name] = counter
	su.vars.Set(name, counter)
}

func (su *StatsUpdater) Incr(name string) {
	su.queue(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.queue(name, -1)
}

func (su *StatsUpdater) queue(name string, delta int64) {
	select {
	case su.updates <- metricDelta{name: name, delta: delta}:
	default:
	}
}

func (su *StatsUpdater) Run() {
	go func() {
		for {
			select {
			case upd := <-su.updates:
				if counter, ok := su.counters[upd.name]; ok {
					counter.Add(upd.delta)
				}
			case <-su.done:
				return
			}
		}
	}()
}

func (su *StatsUpdater) Stop() {
	close(su.done)
}
