package httpapi

import (
	"net/http"

	"brood-flow/internal/utils"
)

type healthResponse struct {
	Status      string `json:"status"`
	MQTT        string `json:"mqtt"`
	MQTTPending int    `json:"mqtt_pending"`
	Devices     int    `json:"devices"`
}

type healthchecker struct {
	deps Deps
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", MQTT: "disabled"}
	if h.deps.MQTT != nil {
		resp.MQTT = h.deps.MQTT.Status()
		resp.MQTTPending = h.deps.MQTT.Pending()
	}
	if h.deps.Devices != nil {
		resp.Devices = len(h.deps.Devices.Snapshot())
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, deps Deps) {
	h := &healthchecker{deps: deps}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
