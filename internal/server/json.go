package server

import (
	"encoding/json"
	"net/http"
)

const (
	resultOK     = "OK"
	resultFailed = "FAILED"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// envelope merges the fields of payload with the result marker and the
// caller's color into one flat object.
func envelope(result string, color int, payload any) (map[string]any, error) {
	out := map[string]any{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	}
	out["result"] = result
	out["color"] = color
	return out, nil
}

func writeResult(w http.ResponseWriter, result string, color int, payload any) {
	body, err := envelope(result, color, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, color, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status, color int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Color: color})
}
