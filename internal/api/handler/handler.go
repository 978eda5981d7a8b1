// Package handler provides HTTP handlers for the pushrelay API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/apperr"
)

// maxBodyBytes bounds request bodies for every endpoint.
const maxBodyBytes = 64 << 10

// writeError logs server-side failures and writes the mapped problem.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if !apperr.IsValidation(err) && !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrUnauthorized) {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("request failed")
	}
	response.Error(w, r, err)
}

// decodeJSON decodes a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// bodyValues reads string fields from a JSON or form-encoded body.
// Requests without a body yield an empty map.
func bodyValues(w http.ResponseWriter, r *http.Request, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if r.Body == nil || r.Body == http.NoBody {
		return out, nil
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ = mime.ParseMediaType(ct)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, apperr.Invalid("body", "invalid form body")
		}
		for _, f := range fields {
			out[f] = r.PostFormValue(f)
		}
	default:
		raw := map[string]interface{}{}
		if err := decodeJSON(w, r, &raw); err != nil {
			return nil, err
		}
		for _, f := range fields {
			switch v := raw[f].(type) {
			case string:
				out[f] = v
			case nil:
			default:
				out[f] = fmt.Sprint(v)
			}
		}
	}
	return out, nil
}
