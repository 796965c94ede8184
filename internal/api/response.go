package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every failed JSON route.
type ErrorResponse struct {
	Error      string              `json:"error"`
	Code       int                 `json:"code"`
	UserErrors []shopify.UserError `json:"user_errors,omitempty"`
	TraceID    string              `json:"trace_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// classify maps an error to the status and client-safe message it is
// reported with.
func classify(err error) (int, string) {
	var ue shopify.UserErrors
	var he *shopify.HTTPError
	var ge shopify.GraphQLErrors
	var ce *utils.CustomError

	switch {
	case errors.As(err, &ue):
		return http.StatusUnprocessableEntity, ue.Error()
	case shopify.IsThrottled(err):
		return http.StatusTooManyRequests, "shop API rate limit reached, retry shortly"
	case shopify.IsUnauthorized(err):
		return http.StatusUnauthorized, "shop access token was rejected"
	case errors.As(err, &ce):
		return utils.StatusOf(err), utils.MessageOf(err)
	case errors.Is(err, scan.ErrUnrecognized):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &he), errors.As(err, &ge):
		return http.StatusBadGateway, "upstream request failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "upstream request timed out"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	entry := s.logger.FromContext(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	resp := ErrorResponse{Error: msg, Code: status, TraceID: utils.TraceID(r.Context())}
	var ue shopify.UserErrors
	if errors.As(err, &ue) {
		resp.UserErrors = ue
	}
	writeJSON(w, status, resp)
}

// decodeBody reads a JSON body into v. An empty body leaves v unchanged when
// allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return utils.Wrap(http.StatusBadRequest, "invalid JSON body", err)
	}
	return nil
}
