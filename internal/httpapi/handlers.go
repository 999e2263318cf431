package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"govee-decoder/internal/metrics"
	"govee-decoder/internal/utils"
	"govee-decoder/pkg/govee"
)

type modelInfo struct {
	Name    string        `json:"name"`
	Offsets govee.Offsets `json:"offsets"`
}

type decodeRequest struct {
	Payload string `json:"payload"`
}

type decodeResponse struct {
	Model   string        `json:"model"`
	Payload string        `json:"payload"`
	Reading govee.Reading `json:"reading"`
}

type decodeAPI struct {
	metrics *metrics.Metrics
}

func healthz(ready func() bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if ready != nil {
			resp["mqtt_connected"] = ready()
		}
		utils.WriteJSON(w, http.StatusOK, resp)
	})
}

func (a *decodeAPI) handleModels(w http.ResponseWriter, r *http.Request) {
	models := govee.Models()
	out := make([]modelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, modelInfo{Name: m.Name, Offsets: m.Offsets})
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (a *decodeAPI) handleDecode(w http.ResponseWriter, r *http.Request) {
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	model, _ := govee.Detect(payload)
	reading, err := govee.DecodeAny(payload)
	if err != nil {
		a.writeDecodeError(w, model, err)
		return
	}
	a.metrics.Decode(model, metrics.ResultOK)
	utils.WriteJSON(w, http.StatusOK, decodeResponse{Model: model, Payload: payload, Reading: reading})
}

func (a *decodeAPI) handleDecodeForModel(w http.ResponseWriter, r *http.Request) {
	model := strings.ToUpper(r.PathValue("model"))
	if model == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing model")
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	reading, err := govee.DecodeForModel(model, payload)
	if err != nil {
		a.writeDecodeError(w, model, err)
		return
	}
	a.metrics.Decode(model, metrics.ResultOK)
	utils.WriteJSON(w, http.StatusOK, decodeResponse{Model: model, Payload: payload, Reading: reading})
}

func readPayload(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req decodeRequest
	if err := utils.ReadJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	payload := strings.TrimSpace(req.Payload)
	if payload == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing payload")
		return "", false
	}
	return payload, true
}

func (a *decodeAPI) writeDecodeError(w http.ResponseWriter, model string, err error) {
	switch {
	case errors.Is(err, govee.ErrUnknownModel):
		a.metrics.Decode(model, metrics.ResultUnknown)
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, govee.ErrUnsupportedPayload):
		a.metrics.Decode(model, metrics.ResultUnsupported)
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.metrics.Decode(model, metrics.ResultMalformed)
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
