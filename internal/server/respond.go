package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lexigate/lexigate/internal/errcode"
	"github.com/lexigate/lexigate/internal/observe"
)

// maxBodyBytes bounds request bodies. Translation text is limited separately
// by max_text_length; this guards the JSON decoder itself.
const maxBodyBytes = 1 << 20

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

type errorBody struct {
	Code    errcode.Code `json:"code"`
	Message string       `json:"message"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError maps err onto the error taxonomy and writes the envelope. The
// wrapped cause is logged but never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce := errcode.From(err)
	if ce.Err != nil {
		attrs := []any{
			"request_id", observe.RequestID(r.Context()),
			"code", ce.Code, "error", ce.Err,
		}
		if tid := observe.CorrelationID(r.Context()); tid != "" {
			attrs = append(attrs, "trace_id", tid)
		}
		slog.Warn("request failed", attrs...)
	}
	writeJSON(w, errcode.HTTPStatus(ce.Code), errorEnvelope{
		Error:     errorBody{Code: ce.Code, Message: ce.Message},
		RequestID: observe.RequestID(r.Context()),
	})
}

// decodeJSON reads the request body into v. Malformed bodies map to
// INVALID_JSON; an empty body decodes into the zero value.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errcode.Wrap(errcode.InvalidJSON, err)
	}
	if len(body) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return errcode.Wrap(errcode.InvalidJSON, err)
	}
	// Trailing garbage after the JSON document is also invalid.
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return errcode.New(errcode.InvalidJSON)
	}
	return nil
}
