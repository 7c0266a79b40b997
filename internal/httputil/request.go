package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"modelgate/internal/config"
)

// ParseJSON decodes JSON from the request body into the given destination.
// It limits the request body size to prevent abuse. An empty body leaves
// dest untouched.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	// MaxBytesReader needs w for a proper 413 response
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	// Unknown fields are allowed: filters and payloads are free-form maps
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
