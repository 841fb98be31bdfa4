package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kwv/isoreach/isochrone"
	"github.com/kwv/isoreach/roadgraph"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(a *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Profiles  []string  `json:"profiles"`
			Nodes     int       `json:"nodes"`
			MQTT      bool      `json:"mqtt"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Profiles:  a.Config.ProfileNames(),
			Nodes:     a.Graph.NodeCount(),
			MQTT:      a.MQTTClient != nil && a.MQTTClient.IsConnected(),
		}
		writeJSON(w, http.StatusOK, "application/json", status)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	// Isochrones as GeoJSON
	mux.HandleFunc("POST /v2/isochrones/{profile}", func(w http.ResponseWriter, r *http.Request) {
		coll, req, ok := a.serveCompute(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, "application/geo+json", isochrone.ToFeatureCollection(coll, req))
	})

	// Isochrones drawn as SVG (default) or PNG (?format=png)
	mux.HandleFunc("POST /v2/isochrones/{profile}/image", func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "svg"
		}
		if format != "svg" && format != "png" {
			writeError(w, http.StatusBadRequest, "unsupported image format "+format)
			return
		}

		coll, _, ok := a.serveCompute(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := render(&buf, coll, format, 0); err != nil {
			a.Logger.Error("rendering isochrones", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if format == "png" {
			w.Header().Set("Content-Type", "image/png")
		} else {
			w.Header().Set("Content-Type", "image/svg+xml")
		}
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			a.Logger.Warn("writing image", "error", err)
		}
	})

	return a.logRequests(mux)
}

// serveCompute decodes the request body and runs it. On failure the error
// response has been written and ok is false.
func (a *App) serveCompute(w http.ResponseWriter, r *http.Request) (*isochrone.IsochroneMapCollection, isochrone.Request, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, isochrone.Request{}, false
	}
	body, err := isochrone.ParseRequestBody(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, isochrone.Request{}, false
	}

	coll, req, err := a.compute(r.Context(), r.PathValue("profile"), body)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			a.Logger.Error("isochrone request failed", "profile", req.Profile, "error", err)
		}
		writeError(w, status, err.Error())
		return nil, req, false
	}
	return coll, req, true
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, isochrone.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, isochrone.ErrUnknownProfile), errors.Is(err, roadgraph.ErrPointNotFound):
		return http.StatusNotFound
	case errors.Is(err, isochrone.ErrMaxVisitedNodesExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, isochrone.ErrRangeComputationAborted):
		return http.StatusGatewayTimeout
	case errors.Is(err, isochrone.ErrStatisticsUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var resp errorResponse
	resp.Error.Code = status
	resp.Error.Message = msg
	writeJSON(w, status, "application/json", resp)
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"took", time.Since(start))
	})
}
