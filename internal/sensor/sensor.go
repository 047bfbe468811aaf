// Package sensor runs the per-sensor update loop: resolve monitored
// dates, fetch from the API, normalize, reconcile and publish.
package sensor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lox/ouraview/internal/datename"
	"github.com/lox/ouraview/internal/metrics"
	"github.com/lox/ouraview/internal/oura"
	"github.com/lox/ouraview/internal/reconcile"
	"github.com/lox/ouraview/internal/series"
)

// Fetcher is the API surface a sensor needs. *oura.Client implements
// it.
type Fetcher interface {
	Fetch(ctx context.Context, ep oura.Endpoint, startDate, endDate string) (map[string]any, error)
}

// Sensor is one configured sensor instance. State and attributes are
// safe for concurrent readers.
type Sensor struct {
	def    oura.SensorDef
	cfg    reconcile.Config
	client Fetcher
	now    func() time.Time

	mu          sync.RWMutex
	state       any
	attributes  map[string]any
	lastUpdated time.Time
}

func New(def oura.SensorDef, cfg reconcile.Config, client Fetcher) *Sensor {
	return &Sensor{
		def:        def,
		cfg:        cfg,
		client:     client,
		now:        time.Now,
		attributes: map[string]any{},
	}
}

// Name returns the configured sensor name.
func (s *Sensor) Name() string {
	return s.cfg.Name
}

// Key returns the sensor type key.
func (s *Sensor) Key() string {
	return s.def.Key
}

// State returns the current scalar state, nil until first data.
func (s *Sensor) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attributes returns the per-date attribute map from the last tick.
func (s *Sensor) Attributes() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// LastUpdated returns when the last tick published.
func (s *Sensor) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Update runs one full tick. Any fetch or payload failure degrades to
// an empty series: defaults get published for every monitored date and
// the previous state survives. Nothing propagates to the caller.
func (s *Sensor) Update(ctx context.Context) {
	today := s.now()
	resolved := make(map[string]string, len(s.cfg.MonitoredDates))
	for _, name := range s.cfg.MonitoredDates {
		resolved[name] = datename.Resolve(name, today)
	}
	start, end := datename.Window(resolved, today)

	result := "ok"
	raw, err := s.client.Fetch(ctx, s.def.Endpoint, start, end)
	if err != nil {
		log.Printf("sensor: %s: fetch %s: %v", s.cfg.Name, s.def.Endpoint.ID, err)
		result = "error"
		raw = nil
	}

	data, err := series.Normalize(raw, s.def.Endpoint.DataKey, s.def.DayKey, s.def.Transform, s.def.Filter, s.def.Def.Shape)
	if err != nil {
		if errors.Is(err, series.ErrNoData) {
			if result == "ok" {
				log.Printf("sensor: %s: no data in %s payload", s.cfg.Name, s.def.Endpoint.ID)
				result = "no_data"
			}
		} else {
			log.Printf("sensor: %s: normalize: %v", s.cfg.Name, err)
			result = "error"
		}
	}

	res := reconcile.Reconcile(data, resolved, start, s.cfg, s.def.Def)
	if res.Substitutions > 0 {
		metrics.BackfillSubstitutionsTotal.WithLabelValues(s.cfg.Name).Add(float64(res.Substitutions))
	}
	metrics.SensorUpdatesTotal.WithLabelValues(s.cfg.Name, result).Inc()

	s.mu.Lock()
	if res.HasState {
		s.state = res.State
	}
	s.attributes = res.Attributes
	s.lastUpdated = time.Now()
	s.mu.Unlock()
}
