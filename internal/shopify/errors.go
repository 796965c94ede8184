package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-200 response from the Admin API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Body)
}

// GraphQLError is one entry of a top-level "errors" array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

// GraphQLErrors is returned when the response carries an "errors" array.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		if ge.Extensions.Code != "" {
			msgs = append(msgs, ge.Extensions.Code+": "+ge.Message)
		} else {
			msgs = append(msgs, ge.Message)
		}
	}
	return "GraphQL errors: " + strings.Join(msgs, "; ")
}

// Throttled reports whether any entry has the THROTTLED code.
func (e GraphQLErrors) Throttled() bool {
	for _, ge := range e {
		if ge.Extensions.Code == "THROTTLED" {
			return true
		}
	}
	return false
}

// UserError represents a mutation user error from Shopify
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is returned when a mutation reports userErrors.
type UserErrors []UserError

func (e UserErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, ue := range e {
		if len(ue.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			parts = append(parts, ue.Message)
		}
	}
	return "User errors: " + strings.Join(parts, "; ")
}

// AsUserErrors returns errs as an error, or nil when empty.
func AsUserErrors(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return UserErrors(errs)
}

// IsThrottled reports whether err means the shop's rate budget ran out.
func IsThrottled(err error) bool {
	var ge GraphQLErrors
	if errors.As(err, &ge) && ge.Throttled() {
		return true
	}
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusTooManyRequests
}

// IsUnauthorized reports whether the access token was rejected.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && (he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden)
}

// retryable reports whether err may be retried. A 5xx can arrive after a
// mutation was applied, so mutations are only retried when throttled.
func retryable(err error, mutation bool) bool {
	if IsThrottled(err) {
		return true
	}
	if mutation {
		return false
	}
	var he *HTTPError
	return errors.As(err, &he) && he.Status >= 500
}
