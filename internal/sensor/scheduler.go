package sensor

import (
	"context"
	"log"
	"time"
)

// updateTimeout bounds one sensor's tick so a wedged request cannot
// stall the whole cycle.
const updateTimeout = 5 * time.Minute

// Scheduler updates all sensors on a fixed interval.
type Scheduler struct {
	sensors  []*Sensor
	byName   map[string]*Sensor
	interval time.Duration
}

func NewScheduler(sensors []*Sensor, interval time.Duration) *Scheduler {
	byName := make(map[string]*Sensor, len(sensors))
	for _, s := range sensors {
		byName[s.Name()] = s
	}
	return &Scheduler{
		sensors:  sensors,
		byName:   byName,
		interval: interval,
	}
}

// Sensors returns all registered sensors in registration order.
func (s *Scheduler) Sensors() []*Sensor {
	return s.sensors
}

// Sensor returns the sensor with the given configured name, nil when
// unknown.
func (s *Scheduler) Sensor(name string) *Sensor {
	return s.byName[name]
}

// Run updates immediately, then on every interval tick until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.UpdateOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.UpdateOnce(ctx)
		}
	}
}

// UpdateOnce ticks every sensor once, each under its own timeout.
func (s *Scheduler) UpdateOnce(ctx context.Context) {
	for _, sensor := range s.sensors {
		tickCtx, cancel := context.WithTimeout(ctx, updateTimeout)
		sensor.Update(tickCtx)
		cancel()
	}
}

// UpdateSensor ticks one sensor by name, reporting whether it exists.
// Used by the OAuth callback to exchange a fresh code right away.
func (s *Scheduler) UpdateSensor(ctx context.Context, name string) bool {
	sensor := s.byName[name]
	if sensor == nil {
		return false
	}
	tickCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()
	sensor.Update(tickCtx)
	return true
}
