// Package rpc holds the connect plumbing shared by the service packages:
// a JSON codec for plain Go messages and error code mapping.
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/rs/zerolog/log"
)

// Codec serializes plain structs as JSON under the "json" codec name so
// connect clients using application/json can talk to the services.
type Codec struct{}

func (Codec) Name() string                         { return "json" }
func (Codec) Marshal(msg any) ([]byte, error)      { return json.Marshal(msg) }
func (Codec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

// HandlerOptions returns the options every service handler is built with.
func HandlerOptions(extra ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, extra...)
}

// ClientOptions returns the options a client needs to call the services.
func ClientOptions(extra ...connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, extra...)
}

// Code maps an application error kind onto a connect code.
func Code(err error) connect.Code {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return connect.CodeInvalidArgument
	case apperr.KindNotFound:
		return connect.CodeNotFound
	case apperr.KindInvalidState:
		return connect.CodeFailedPrecondition
	case apperr.KindUpstream:
		return connect.CodeUnavailable
	case apperr.KindForbidden:
		return connect.CodePermissionDenied
	}
	return connect.CodeInternal
}

// Error converts an application error into a connect error carrying the
// user facing message.
func Error(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	code := Code(err)
	if code == connect.CodeInternal {
		log.Error().Err(err).Msg("internal error")
	}
	return connect.NewError(code, errors.New(apperr.DisplayMessage(err)))
}

// HTTPStatus maps an application error kind onto an HTTP status.
func HTTPStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusServiceUnavailable
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// WriteError writes err as {"error": ..., "code": ...}.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, HTTPStatus(err), map[string]string{
		"error": apperr.DisplayMessage(err),
		"code":  string(apperr.KindOf(err)),
	})
}
