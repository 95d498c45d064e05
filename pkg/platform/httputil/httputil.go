// Package httputil is the boundary adapter between coded domain errors and HTTP.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "rolegate/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for every failure.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusBadRequest,
	dErrors.CodeInvariantViolation: http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeForbidden:          http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeInternal:           http.StatusInternalServerError,

	dErrors.CodeMalformedQueryParams:  http.StatusBadRequest,
	dErrors.CodeMalformedRange:        http.StatusBadRequest,
	dErrors.CodeInvalidOrderDirection: http.StatusBadRequest,
	dErrors.CodeInvalidWhereClause:    http.StatusBadRequest,

	dErrors.CodeBadCredentials:         http.StatusUnauthorized,
	dErrors.CodeInactiveUser:           http.StatusBadRequest,
	dErrors.CodeInsufficientPrivileges: http.StatusForbidden,
	dErrors.CodePermissionDenied:       http.StatusForbidden,

	dErrors.CodeDuplicateResource:   http.StatusConflict,
	dErrors.CodeActiveUserProtected: http.StatusConflict,
	dErrors.CodeSuperuserProtected:  http.StatusConflict,
	dErrors.CodeStoreFailure:        http.StatusInternalServerError,
}

// StatusFor maps a domain error code to an HTTP status. Unknown codes are 500.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError writes the JSON error envelope for err. Descriptions of server-side
// failures are omitted so store details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, status, resp)
}

// WriteJSON encodes body as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}
