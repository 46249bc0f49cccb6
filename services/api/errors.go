package apisvc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

// Error is a failed API call: either a non-2xx response (Status > 0) or a transport failure.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
	Fields  map[string]string
	Body    []byte
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError converts a rejected request into the form error type.
func (e *Error) ValidationError() *core.ValidationError {
	vErr := &core.ValidationError{}
	if len(e.Fields) == 0 {
		vErr.Err = errors.New(e.Message)
		return vErr
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vErr.Fields = append(vErr.Fields, core.FieldError{Field: name, Error: e.Fields[name]})
	}
	return vErr
}

// newResponseError passes the server's error payload through:
// {"error": "..."}, {"message": "..."}, a field map, or plain text.
func newResponseError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status, Body: body}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil && payload != nil {
		switch {
		case isString(payload["error"]):
			e.Message = payload["error"].(string)
		case isString(payload["message"]):
			e.Message = payload["message"].(string)
		default:
			e.Fields = make(map[string]string, len(payload))
			for k, v := range payload {
				if s, ok := v.(string); ok {
					e.Fields[k] = s
				}
			}
			e.Message = "invalid input"
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		e.Message = text
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
	}
	return e
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func asError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized is true for a 401 or a locally detected expired token.
func IsUnauthorized(err error) bool {
	if errors.Is(err, session.ErrTokenExpired) || errors.Is(err, session.ErrUnauthenticated) {
		return true
	}
	apiErr, ok := asError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

// IsValidation is true for validation or business rule rejections, local or from the server.
func IsValidation(err error) bool {
	if _, ok := core.AsValidationError(err); ok {
		return true
	}
	apiErr, ok := asError(err)
	if !ok {
		return false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// IsTransport is true when no response was received.
func IsTransport(err error) bool {
	apiErr, ok := asError(err)
	return ok && apiErr.Status == 0
}

// IsNotFound is true for a 404.
func IsNotFound(err error) bool {
	apiErr, ok := asError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

// FormError returns the error to render next to a form, or nil if err is not a rejection.
func FormError(err error) *core.ValidationError {
	if vErr, ok := core.AsValidationError(err); ok {
		return vErr
	}
	if apiErr, ok := asError(err); ok && IsValidation(err) {
		return apiErr.ValidationError()
	}
	return nil
}
