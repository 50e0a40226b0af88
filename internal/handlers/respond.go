package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"fotos/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError is the one place failures become responses. Internal causes
// are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)
	if apiErr.Kind == apierr.Internal {
		log.Error().
			Err(apiErr.Cause).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("internal server error")
	}
	http.Error(w, apiErr.Message, apiErr.Kind.Status())
}

func attachment(w http.ResponseWriter, filename, mimetype string) {
	w.Header().Set("Content-Type", mimetype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func queryUint32(r *http.Request, name string) (*uint32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	u := uint32(v)
	return &u, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// pathParam returns the decoded route param key. chi routes on RawPath
// when the request carries one, so escapes such as %2B are still present in
// the param and are decoded here. Without a RawPath the param is already
// decoded.
func pathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	p, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid path %q", raw)
	}
	return p, nil
}
