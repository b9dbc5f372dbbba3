package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/validator"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter) {
	writeError(w, "not found", http.StatusNotFound)
}

// respondErr translates domain errors to status codes. Validation failures
// are the client's, missing records 404, anything else is logged and hidden
// behind a 500.
func respondErr(w http.ResponseWriter, l *slog.Logger, err error) {
	var verr validator.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound):
		notFound(w)
	default:
		l.Error("request failed", "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}
