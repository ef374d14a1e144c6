// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authentication and authorization failures stay deliberately generic;
// validation failures return the full structured field set.
func RespondError(w http.ResponseWriter, err error) {
	var fields shared.ValidationErrors
	switch {
	case errors.As(err, &fields):
		ValidationProblem(w, fields)
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", "please log in again")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", "username or email already taken")
	case errors.Is(err, shared.ErrPolicyRejected):
		Problem(w, http.StatusBadRequest, "Policy Rejected", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "invalid username or password")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
