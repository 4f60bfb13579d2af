package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"hotel-billing/services"
)

func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) notFoundResponse(w http.ResponseWriter, r *http.Request, what string) {
	writeJSONError(w, http.StatusNotFound, what+" not found")
}

func (s *Server) unauthorizedResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warnw("unauthorized", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeJSONError(w, http.StatusUnauthorized, err.Error())
}

// errorResponse maps service errors to status codes.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var throttled *services.ThrottledError
	switch {
	case services.IsValidation(err):
		s.badRequestResponse(w, r, err)
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrNoActiveTenant):
		s.unauthorizedResponse(w, r, err)
	case errors.As(err, &throttled):
		w.Header().Set("Retry-After", strconv.Itoa(int(throttled.Wait.Seconds())))
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrOrderCompleted):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		s.internalServerError(w, r, err)
	}
}

func badParam(name string, err error) error {
	return &services.ValidationError{Field: name, Reason: fmt.Sprintf("invalid value: %v", err)}
}
