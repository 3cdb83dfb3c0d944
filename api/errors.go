package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/voteguard/voteguard-node/log"
)

// Error satisfies the error interface and maps to a JSON error response.
// Codes in the 40001-49999 range are the client's fault, 50001-59999 the
// server's. Codes are never reused once assigned.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

func (e Error) Error() string {
	return e.Err.Error()
}

// WithErr returns a copy of Error with the description extended by err.
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// Write serializes the error as a JSON response body.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}{Error: e.Err.Error(), Code: e.Code})
	if err != nil {
		log.Warnw("failed to marshal error response", "error", err)
		http.Error(w, "500 internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(msg); err != nil {
		log.Warnw("failed to write error response", "error", err)
	}
}

var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed body")}
	ErrMalformedGuardianIdx  = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed guardian index")}
	ErrAlreadyPublished      = Error{Code: 40004, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("artifact already published")}
	ErrMalformedStatus       = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed guardian status")}
	ErrEmptyArtifact         = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("empty artifact body")}
	ErrGenericInternalServer = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrMarshalingJSONFailed  = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling JSON failed")}
)
