package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tablegate/tablegate/internal/engine"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError serializes an engine error without leaking query internals.
func writeError(w http.ResponseWriter, err error) {
	msg := "query execution failed"
	var e *engine.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	writeJSON(w, engine.StatusOf(err), errorBody{
		Code:    string(engine.CodeOf(err)),
		Message: msg,
	})
}

// badParamf is a request-shape error from URL parsing.
func badParamf(format string, args ...any) error {
	return &engine.Error{
		Code:    engine.CodeValidation,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}
