package service

import "net/http"

// HTTPError carries the status a rejected request is answered with. The message of Wrapped
// is shown to the caller, so it must not leak whether an identity or instance exists.
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// invalidInput rejects a request that is missing or malforms a field.
func invalidInput(err error) *HTTPError { return httpError(http.StatusBadRequest, err) }

// denied rejects a well-formed request the caller may not make, including tokens that are
// authentic but outside their validity window.
func denied(err error) *HTTPError { return httpError(http.StatusForbidden, err) }

// unauthenticated rejects a credential that does not verify.
func unauthenticated(err error) *HTTPError { return httpError(http.StatusUnauthorized, err) }
