package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kwv/isoreach/isochrone"
	"github.com/kwv/isoreach/roadgraph"
	"github.com/paulmach/orb"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *isochrone.Config
	Graph      *roadgraph.Graph
	Engine     *isochrone.Engine
	Stats      *isochrone.PostGISStats
	MQTTClient *isochrone.MQTTClient
	Publisher  *isochrone.Publisher
	Logger     *slog.Logger

	opts AppOptions
	// serviceCtx bounds work started by MQTT callbacks
	serviceCtx context.Context
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{opts: AppOptions{Out: os.Stdout, Smoothing: -1}}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	a.opts = opts
}

// loadConfig reads the config file, or falls back to defaults when none is given
func (a *App) loadConfig() error {
	if a.Config == nil {
		if a.opts.ConfigFile == "" {
			a.Config = isochrone.DefaultConfig()
		} else {
			cfg, err := isochrone.LoadConfig(a.opts.ConfigFile)
			if err != nil {
				return err
			}
			a.Config = cfg
		}
	}
	if a.Logger == nil {
		a.Logger = setupLogging(os.Stderr, a.Config.Logging.Level, a.Config.Logging.Format)
	}
	return nil
}

// setup loads config and graph and builds the engine
func (a *App) setup(ctx context.Context) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	if a.Graph == nil {
		path := a.opts.GraphFile
		if path == "" {
			path = a.Config.Graph.Path
		}
		if path == "" {
			return fmt.Errorf("no road network: pass --graph or set graph.path")
		}
		start := time.Now()
		g, err := roadgraph.LoadFile(path)
		if err != nil {
			return err
		}
		a.Graph = g
		a.Logger.Info("loaded road network", "path", path,
			"nodes", g.NodeCount(), "edges", g.EdgeCount(), "took", time.Since(start))
	}

	if a.Engine == nil {
		return a.initEngine(ctx)
	}
	return nil
}

func (a *App) initEngine(ctx context.Context) error {
	profiles := make([]isochrone.Profile, len(a.Config.Profiles))
	for i, p := range a.Config.Profiles {
		profiles[i] = isochrone.Profile{Name: p.Name, Speed: p.Speed, MaxSpeed: p.MaxSpeed}
	}
	searcher := roadgraph.NewSearcher(a.Graph, profiles, a.Config.Graph.MaxVisitedNodes)

	var stats isochrone.StatisticsProvider
	if a.Config.Statistics != nil {
		s, err := isochrone.NewPostGISStats(ctx, *a.Config.Statistics)
		if err != nil {
			return fmt.Errorf("statistics database: %w", err)
		}
		a.Stats = s
		stats = s
		a.Logger.Info("statistics enabled", "table", a.Config.Statistics.Table)
	}

	a.Engine = isochrone.NewEngine(searcher, isochrone.EngineConfig{
		Workers:          a.Config.Isochrones.Workers,
		DefaultSmoothing: a.Config.Isochrones.DefaultSmoothing,
		Hull:             isochrone.NewDelaunayHull(),
		Stats:            stats,
		Logger:           a.Logger,
	})
	return nil
}

func (a *App) close() {
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	if a.Stats != nil {
		a.Stats.Close()
	}
}

// requestBody builds the JSON request form from command line flags
func (a *App) requestBody() (*isochrone.RequestBody, error) {
	body := &isochrone.RequestBody{
		Profile:       a.opts.Profile,
		Range:         a.opts.Ranges,
		Interval:      a.opts.Interval,
		RangeType:     a.opts.RangeType,
		Units:         a.opts.Units,
		AreaUnits:     a.opts.AreaUnits,
		Attributes:    a.opts.Attributes,
		Intersections: a.opts.Intersections,
	}
	if a.opts.Smoothing >= 0 {
		s := a.opts.Smoothing
		body.Smoothing = &s
	}
	for _, l := range a.opts.Locations {
		p, err := parseLonLat(l)
		if err != nil {
			return nil, err
		}
		body.Locations = append(body.Locations, [2]float64{p[0], p[1]})
	}
	return body, nil
}

// compute validates body and runs it through the engine under the request timeout
func (a *App) compute(ctx context.Context, profile string, body *isochrone.RequestBody) (*isochrone.IsochroneMapCollection, isochrone.Request, error) {
	req, err := body.ToRequest(profile, a.Config.Isochrones.Limits)
	if err != nil {
		return nil, req, err
	}
	if a.Config.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Server.RequestTimeout)
		defer cancel()
	}
	coll, err := a.Engine.Compute(ctx, req)
	return coll, req, err
}

// RunCompute computes isochrones from flags and writes GeoJSON
func (a *App) RunCompute(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}
	defer a.close()

	body, err := a.requestBody()
	if err != nil {
		return err
	}
	coll, req, err := a.compute(ctx, "", body)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(isochrone.ToFeatureCollection(coll, req), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding GeoJSON: %w", err)
	}
	if a.opts.OutputFile == "" {
		_, err = fmt.Fprintln(a.opts.Out, string(data))
		return err
	}
	if err := os.WriteFile(a.opts.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	a.Logger.Info("wrote isochrones", "path", a.opts.OutputFile, "locations", len(coll.Maps))
	return nil
}

// RunRender computes isochrones from flags and draws them
func (a *App) RunRender(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}
	defer a.close()

	format := strings.ToLower(a.opts.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(a.opts.OutputFile)), ".")
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported render format %q (use svg or png)", format)
	}

	body, err := a.requestBody()
	if err != nil {
		return err
	}
	coll, _, err := a.compute(ctx, "", body)
	if err != nil {
		return err
	}

	f, err := os.Create(a.opts.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	if err := render(f, coll, format, a.opts.MetresPerUnit); err != nil {
		return err
	}
	a.Logger.Info("rendered isochrones", "path", a.opts.OutputFile, "format", format)
	return nil
}

func render(w io.Writer, coll *isochrone.IsochroneMapCollection, format string, metresPerUnit float64) error {
	r := isochrone.NewMapRenderer(coll)
	if metresPerUnit > 0 {
		r.MetresPerUnit = metresPerUnit
	}
	if format == "png" {
		return r.RenderToPNG(w)
	}
	return r.RenderToSVG(w)
}

// RunService serves requests over HTTP and, when a broker is configured, MQTT
func (a *App) RunService(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}
	defer a.close()

	addr := a.Config.Server.Addr
	if a.opts.Addr != "" {
		addr = a.opts.Addr
	}

	a.serviceCtx = ctx
	a.MQTTClient = isochrone.InitMQTT(a.Config.MQTT, a.handleMQTTRequest, a.Logger)
	if a.MQTTClient != nil {
		a.Publisher = isochrone.NewPublisher(a.MQTTClient.GetClient(), a.Config.MQTT.PublishPrefix)
		a.Publisher.SetQoS(a.Config.MQTT.QoS)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHTTPServer(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", "addr", addr, "profiles", a.Config.ProfileNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if a.MQTTClient != nil {
		a.Logger.Info("MQTT requests enabled",
			"subscribe", strings.TrimSuffix(a.Config.MQTT.RequestTopic, "/")+"/{profile}",
			"results", a.Config.MQTT.PublishPrefix+"/result/{id}")
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	a.Logger.Info("service stopped")
	return nil
}

// handleMQTTRequest computes one request received over MQTT and publishes the
// result or the failure
func (a *App) handleMQTTRequest(profile string, payload []byte) {
	body, err := isochrone.ParseRequestBody(payload)
	if err != nil {
		isochrone.MQTTRequests.WithLabelValues("invalid").Inc()
		a.Logger.Warn("discarding malformed MQTT request", "error", err)
		a.publishError("", err)
		return
	}

	ctx := a.serviceCtx
	if ctx == nil {
		ctx = context.Background()
	}
	coll, req, err := a.compute(ctx, profile, body)
	if err != nil {
		if errors.Is(err, isochrone.ErrInvalidRequest) || errors.Is(err, isochrone.ErrUnknownProfile) {
			isochrone.MQTTRequests.WithLabelValues("invalid").Inc()
		} else {
			isochrone.MQTTRequests.WithLabelValues("error").Inc()
		}
		a.Logger.Warn("MQTT request failed", "id", body.ID, "profile", req.Profile, "error", err)
		a.publishError(body.ID, err)
		return
	}

	isochrone.MQTTRequests.WithLabelValues("ok").Inc()
	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishResult(body.ID, isochrone.ToFeatureCollection(coll, req)); err != nil {
		a.Logger.Error("publishing result", "id", body.ID, "error", err)
	}
}

func (a *App) publishError(id string, reqErr error) {
	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishError(id, reqErr); err != nil {
		a.Logger.Error("publishing error", "id", id, "error", err)
	}
}

// RunInitConfig writes the default configuration
func (a *App) RunInitConfig() error {
	path := a.opts.OutputFile
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := isochrone.SaveConfig(path, isochrone.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(a.opts.Out, "Wrote default configuration to %s\n", path)
	return nil
}

// RunDemoGraph writes a synthetic grid network usable with --graph
func (a *App) RunDemoGraph() error {
	center, err := parseLonLat(a.opts.Center)
	if err != nil {
		return err
	}
	g, err := roadgraph.NewGrid(center, a.opts.Rows, a.opts.Cols, orb.Point{a.opts.StepX, a.opts.StepY})
	if err != nil {
		return err
	}
	data, err := json.Marshal(g.FeatureCollection())
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	if err := os.WriteFile(a.opts.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}
	fmt.Fprintf(a.opts.Out, "Wrote %d nodes and %d edges to %s\n", g.NodeCount(), g.EdgeCount(), a.opts.OutputFile)
	return nil
}

// parseLonLat parses "lon,lat"
func parseLonLat(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("invalid location %q: expected lon,lat", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	return orb.Point{lon, lat}, nil
}
