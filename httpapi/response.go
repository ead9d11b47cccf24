// Package httpapi implements the Operator API (spec §6): the minimal
// HTTP surface an external CRUD tier uses to drive campaign lifecycle
// transitions, bulk-add contacts, and read operator/maintenance state.
// Handlers are thin: every decision lives in campaign.Machine,
// leasestore.Store, or janitor.Janitor; this package only translates
// HTTP in and out of their calls.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/stream"
)

// envelope is the uniform response shape spec §6 names: "{success,
// data|error:{code,message}}".
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeOK(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: message}})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		// Marshaling our own envelope type cannot fail in practice; if it
		// somehow does, fall back to a bare 500 rather than panicking a
		// request goroutine.
		logrus.WithError(err).Error("httpapi: marshal envelope failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := stream.WriteJSON(w, status, body); err != nil {
		logrus.WithError(err).Warn("httpapi: write response body failed")
	}
}

// Error codes used across handlers (spec §6 envelope "error:{code,...}").
const (
	codeInvalidRequest  = "invalid_request"
	codeInvalidState    = "invalid_state"
	codeNotFound        = "not_found"
	codeInternal        = "internal_error"
)
