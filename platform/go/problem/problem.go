package problem

import (
	"encoding/json"
	"net/http"
)

const (
	TypeValidation   = "https://maison.app/problems/validation-error"
	TypeUnauthorized = "https://maison.app/problems/unauthorized"
	TypeForbidden    = "https://maison.app/problems/forbidden"
	TypeNotFound     = "https://maison.app/problems/not-found"
	TypeConflict     = "https://maison.app/problems/conflict"
	TypeRateLimited  = "https://maison.app/problems/rate-limited"
	TypeUpstream     = "https://maison.app/problems/upstream-error"
	TypeInternal     = "https://maison.app/problems/internal-error"
)

// Details is an RFC 7807 problem document.
type Details struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds Details for status.
func New(status int, title, detail, problemType string) Details {
	return Details{Type: problemType, Title: title, Status: status, Detail: detail}
}

// Write renders p as application/problem+json.
func Write(w http.ResponseWriter, p Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Unauthorized writes a 401 problem.
func Unauthorized(w http.ResponseWriter, detail string) {
	Write(w, New(http.StatusUnauthorized, "Unauthorized", detail, TypeUnauthorized))
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, detail string, errs map[string][]string) {
	p := New(http.StatusBadRequest, "Invalid request", detail, TypeValidation)
	p.Errors = errs
	Write(w, p)
}

// Internal writes a 500 problem without leaking detail.
func Internal(w http.ResponseWriter) {
	Write(w, New(http.StatusInternalServerError, "Internal error", "internal error", TypeInternal))
}

// WriteJSON renders v as application/json with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
