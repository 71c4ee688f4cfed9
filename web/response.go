package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/adamwoolhether/rangefetch/web/errs"
	"github.com/adamwoolhether/rangefetch/web/mux"
)

// RespondJSON to an HTTP request, setting the status code and body if any.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	mux.SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

// RespondBytes writes data as an opaque body. Content-Length is set from
// data unless the caller already set one.
func RespondBytes(ctx context.Context, w http.ResponseWriter, statusCode int, data []byte) error {
	mux.SetStatusCode(ctx, statusCode)

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(data)))
	}
	w.WriteHeader(statusCode)

	if len(data) == 0 {
		return nil
	}

	_, err := w.Write(data)
	return err
}

// RespondError writes err as a JSON body with its status code and any
// headers it carries.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	for k, v := range err.Header {
		for _, element := range v {
			w.Header().Add(k, element)
		}
	}

	return RespondJSON(ctx, w, err.Code, err)
}
