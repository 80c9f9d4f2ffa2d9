package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/w-h-a/companion/internal/service/chat"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func closeCodeFor(err error) int {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return websocket.CloseInvalidFramePayloadData
	case http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests:
		return websocket.ClosePolicyViolation
	}
	return websocket.CloseInternalServerErr
}

// errorText hides internal detail from callers for server errors.
func errorText(err error) string {
	if code := statusFor(err); code == http.StatusInternalServerError {
		return http.StatusText(code)
	}
	return err.Error()
}
