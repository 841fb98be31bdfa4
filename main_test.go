package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunCompute(ctx context.Context) error {
	m.called["RunCompute"] = true
	return nil
}
func (m *mockApp) RunRender(ctx context.Context) error {
	m.called["RunRender"] = true
	return nil
}
func (m *mockApp) RunService(ctx context.Context) error {
	m.called["RunService"] = true
	return nil
}
func (m *mockApp) RunInitConfig() error { m.called["RunInitConfig"] = true; return nil }
func (m *mockApp) RunDemoGraph() error  { m.called["RunDemoGraph"] = true; return nil }

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name: "Compute",
			args: []string{"compute", "--graph", "g.geojson",
				"-l", "8.68,49.42", "-l", "8.69,49.43",
				"-r", "300,600", "--profile", "foot-walking", "--attributes", "area,reachfactor",
				"--intersections"},
			expectedCalled: "RunCompute",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.GraphFile != "g.geojson" {
					t.Errorf("expected GraphFile g.geojson, got %s", opts.GraphFile)
				}
				if len(opts.Locations) != 2 || opts.Locations[1] != "8.69,49.43" {
					t.Errorf("unexpected locations %v", opts.Locations)
				}
				if len(opts.Ranges) != 2 || opts.Ranges[0] != 300 || opts.Ranges[1] != 600 {
					t.Errorf("unexpected ranges %v", opts.Ranges)
				}
				if opts.Profile != "foot-walking" {
					t.Errorf("expected profile foot-walking, got %s", opts.Profile)
				}
				if len(opts.Attributes) != 2 {
					t.Errorf("expected 2 attributes, got %v", opts.Attributes)
				}
				if !opts.Intersections {
					t.Error("expected Intersections true")
				}
				if opts.Smoothing >= 0 {
					t.Errorf("expected default smoothing to be negative, got %f", opts.Smoothing)
				}
			},
		},
		{
			name:           "Render",
			args:           []string{"render", "-l", "8.68,49.42", "-r", "600", "-o", "out.png", "--scale", "5"},
			expectedCalled: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.OutputFile != "out.png" {
					t.Errorf("expected OutputFile out.png, got %s", opts.OutputFile)
				}
				if opts.MetresPerUnit != 5 {
					t.Errorf("expected scale 5, got %f", opts.MetresPerUnit)
				}
			},
		},
		{
			name:           "Serve",
			args:           []string{"serve", "--config", "cfg.yaml", "--addr", ":9090"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.ConfigFile != "cfg.yaml" {
					t.Errorf("expected ConfigFile cfg.yaml, got %s", opts.ConfigFile)
				}
				if opts.Addr != ":9090" {
					t.Errorf("expected Addr :9090, got %s", opts.Addr)
				}
			},
		},
		{
			name:           "InitConfig",
			args:           []string{"init-config"},
			expectedCalled: "RunInitConfig",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.OutputFile != "config.yaml" {
					t.Errorf("expected OutputFile config.yaml, got %s", opts.OutputFile)
				}
			},
		},
		{
			name:           "DemoGraph",
			args:           []string{"demo-graph", "--rows", "5", "--cols", "7"},
			expectedCalled: "RunDemoGraph",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.Rows != 5 || opts.Cols != 7 {
					t.Errorf("expected 5x7, got %dx%d", opts.Rows, opts.Cols)
				}
				if opts.StepX != 0.003 {
					t.Errorf("expected default step 0.003, got %f", opts.StepX)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			if err := run(context.Background(), tt.args, &out, app); err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}
			if len(app.called) != 1 {
				t.Errorf("expected exactly one command, got %v", app.called)
			}
			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_DefaultOutputPerCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"compute writes to stdout", []string{"compute", "-l", "8.68,49.42", "-r", "300"}, ""},
		{"render", []string{"render", "-l", "8.68,49.42", "-r", "300"}, "isochrones.svg"},
		{"serve", []string{"serve"}, ""},
		{"init-config", []string{"init-config"}, "config.yaml"},
		{"demo-graph", []string{"demo-graph"}, "graph.geojson"},
		{"explicit output", []string{"compute", "-l", "8.68,49.42", "-r", "300", "-o", "iso.geojson"}, "iso.geojson"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			if err := run(context.Background(), tt.args, &out, app); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if app.opts.OutputFile != tt.want {
				t.Errorf("expected OutputFile %q, got %q", tt.want, app.opts.OutputFile)
			}
		})
	}
}

func TestRun_MissingRequiredFlags(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run(context.Background(), []string{"compute", "-r", "300"}, &out, app)
	if err == nil {
		t.Fatal("expected error for missing --location")
	}
	if !strings.Contains(err.Error(), "location") {
		t.Errorf("expected error to mention location, got %v", err)
	}
	if app.called["RunCompute"] {
		t.Error("RunCompute should not be called")
	}
}

func TestRun_Version(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out, app); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "isoreach version") {
		t.Errorf("expected version output, got %q", out.String())
	}
	if len(app.called) != 0 {
		t.Errorf("expected no command, got %v", app.called)
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--help"}, &out, app); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, cmd := range []string{"compute", "render", "serve", "init-config", "demo-graph"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("expected help to list %s", cmd)
		}
	}
}
