package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"choreminder/internal/reminder"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reminder.ErrValidation), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, reminder.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var errBadBody = errors.New("invalid JSON body")

func decodeBody(r *http.Request, w http.ResponseWriter, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(b) == 0 {
		return fmt.Errorf("%w: empty body", errBadBody)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}
