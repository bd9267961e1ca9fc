package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater publishes gateway gauges through expvar. Writers never
// block on the expvar map directly; deltas funnel through a single
// goroutine.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan metricDelta
}

type metricDelta struct {
	name  string
	value int64
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		deltas: make(chan metricDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = expvar.NewMap("marketchat-stats")

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) updateMetrics() {
	for delta := range su.deltas {
		metric, ok := su.vars.Get(delta.name).(*expvar.Int)
		if !ok {
			// unregistered metric, drop the delta
			continue
		}

		metric.Add(delta.value)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- metricDelta{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- metricDelta{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, expvar.NewInt(name))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
