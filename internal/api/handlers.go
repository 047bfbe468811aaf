package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lox/ouraview/internal/sensor"
)

// OAuthCallbackPath is the redirect URI path registered with the Oura
// OAuth application.
const OAuthCallbackPath = "/oura/oauth/setup"

// Entity is the JSON shape of one sensor.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       any            `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated string         `json:"last_updated"`
}

func entityFor(s *sensor.Sensor) Entity {
	e := Entity{
		EntityID:   "sensor." + s.Name(),
		State:      s.State(),
		Attributes: s.Attributes(),
	}
	if t := s.LastUpdated(); !t.IsZero() {
		e.LastUpdated = t.UTC().Format(time.RFC3339)
	}
	return e
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"sensors": len(s.scheduler.Sensors()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	sensors := s.scheduler.Sensors()
	entities := make([]Entity, 0, len(sensors))
	for _, sn := range sensors {
		entities = append(entities, entityFor(sn))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entities)
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/sensors/")
	sn := s.scheduler.Sensor(name)
	if sn == nil {
		http.Error(w, fmt.Sprintf("unknown sensor %q", name), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entityFor(sn))
}

// handleOAuthCallback receives the legacy OAuth redirect: it stores
// the code for the sensor named by state and forces one update so the
// code gets exchanged right away.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}
	sensorName := r.URL.Query().Get("state")
	store, ok := s.tokens[sensorName]
	if !ok {
		http.Error(w, fmt.Sprintf("no OAuth sensor named %q", sensorName), http.StatusNotFound)
		return
	}

	if err := store.StoreCode(code); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Exchange the code for tokens before answering so the user sees
	// errors in the logs immediately.
	s.scheduler.UpdateSensor(r.Context(), sensorName)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": fmt.Sprintf(
			"Oura OAuth code for sensor.%s stored in %s. The code will be "+
				"exchanged for an access token and data fetching starts on the "+
				"next update. No further action is required. To restart the "+
				"OAuth process, delete %s and authorize again.",
			sensorName, store.Path(), store.Path()),
	})
}
