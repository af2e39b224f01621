package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is embedded in every mailbox API response.
type envelope struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

func okEnvelope(msg string) envelope {
	return envelope{OK: true, Msg: msg}
}

func failEnvelope(msg string) envelope {
	return envelope{OK: false, Msg: msg}
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// NotFound answers unknown routes with the API envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, failEnvelope("Not Found"))
}
