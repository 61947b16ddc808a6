package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"brood-flow/internal/broodminder"
	"brood-flow/internal/device"
	"brood-flow/internal/journal"
	"brood-flow/internal/utils"
)

const maxHistoryLimit = 1000

type deviceView struct {
	DeviceID             string     `json:"device_id"`
	Resolved             bool       `json:"resolved"`
	Model                string     `json:"model"`
	Firmware             string     `json:"firmware"`
	BatteryPercent       byte       `json:"battery_percent"`
	TemperatureC         float32    `json:"temperature_c"`
	RealtimeTemperatureC float32    `json:"realtime_temperature_c"`
	WeightKg             *float32   `json:"weight_kg,omitempty"`
	WeightLbs            *float32   `json:"weight_lbs,omitempty"`
	FirstSeen            time.Time  `json:"first_seen"`
	LastSeen             time.Time  `json:"last_seen"`
	Sightings            uint64     `json:"sightings"`
	LastConfigSent       *time.Time `json:"last_config_sent,omitempty"`
	LastStateSent        *time.Time `json:"last_state_sent,omitempty"`
}

func newDeviceView(rec device.Record) deviceView {
	r := rec.Reading
	v := deviceView{
		DeviceID:             rec.DeviceID,
		Resolved:             rec.Resolved(),
		Model:                broodminder.ModelName(r.Model),
		Firmware:             r.Firmware(),
		BatteryPercent:       r.BatteryPercent,
		TemperatureC:         r.TemperatureC,
		RealtimeTemperatureC: r.RealtimeTemperatureC,
		FirstSeen:            rec.FirstSeen,
		LastSeen:             rec.LastSeen,
		Sightings:            rec.Sightings,
	}
	if r.HasWeight {
		kg, lbs := r.RealtimeWeightKg, r.RealtimeWeightLbs
		v.WeightKg, v.WeightLbs = &kg, &lbs
	}
	if !rec.LastConfigSent.IsZero() {
		t := rec.LastConfigSent
		v.LastConfigSent = &t
	}
	if !rec.LastStateSent.IsZero() {
		t := rec.LastStateSent
		v.LastStateSent = &t
	}
	return v
}

type devicesHandler struct {
	deps Deps
}

func (h *devicesHandler) list(w http.ResponseWriter, _ *http.Request) {
	records := h.deps.Devices.Snapshot()
	out := make([]deviceView, 0, len(records))
	for _, rec := range records {
		out = append(out, newDeviceView(rec))
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *devicesHandler) readings(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		utils.WriteError(w, http.StatusNotFound, "reading journal is disabled")
		return
	}

	id := r.PathValue("id")
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			utils.WriteError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	entries, err := h.deps.History.Recent(r.Context(), id, limit)
	if err != nil {
		h.deps.Logger.Error("failed to read journal", "device_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	utils.WriteJSON(w, http.StatusOK, entries)
}

func registerDevices(mux *http.ServeMux, deps Deps) {
	if deps.Devices == nil {
		return
	}
	h := &devicesHandler{deps: deps}
	mux.HandleFunc("GET /devices", h.list)
	mux.HandleFunc("GET /devices/{id}/readings", h.readings)
}
