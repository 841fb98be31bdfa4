package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Runner executes the commands; App is the real implementation
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunCompute(ctx context.Context) error
	RunRender(ctx context.Context) error
	RunService(ctx context.Context) error
	RunInitConfig() error
	RunDemoGraph() error
}

// AppOptions carries the command line flags
type AppOptions struct {
	ConfigFile string
	GraphFile  string
	OutputFile string
	Out        io.Writer

	// request flags shared by compute and render
	Locations     []string
	Ranges        []float64
	Interval      float64
	Profile       string
	RangeType     string
	Units         string
	AreaUnits     string
	Smoothing     float64
	Attributes    []string
	Intersections bool

	// render
	Format        string
	MetresPerUnit float64

	// serve
	Addr string

	// demo-graph
	Center string
	Rows   int
	Cols   int
	StepX  float64
	StepY  float64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, NewApp()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run parses args and dispatches to app
func run(ctx context.Context, args []string, out io.Writer, app Runner) error {
	root := newRootCmd(out, app)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

func newRootCmd(out io.Writer, app Runner) *cobra.Command {
	opts := AppOptions{Out: out}

	root := &cobra.Command{
		Use:           "isoreach",
		Short:         "Isochrone computation over a road network",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Path to configuration file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.GraphFile, "graph", "", "Road network GeoJSON (overrides graph.path)")

	// each command owns its -o default, so the value is copied in at run time
	var computeOut, renderOut, configOut, demoOut string
	apply := func(output string) {
		opts.OutputFile = output
		app.ApplyOptions(opts)
	}

	compute := &cobra.Command{
		Use:   "compute",
		Short: "Compute isochrones and print them as GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(computeOut)
			return app.RunCompute(cmd.Context())
		},
	}
	addRequestFlags(compute, &opts)
	compute.Flags().StringVarP(&computeOut, "output", "o", "", "Output file (stdout when empty)")

	render := &cobra.Command{
		Use:   "render",
		Short: "Compute isochrones and draw them as SVG or PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(renderOut)
			return app.RunRender(cmd.Context())
		},
	}
	addRequestFlags(render, &opts)
	render.Flags().StringVarP(&renderOut, "output", "o", "isochrones.svg", "Output file")
	render.Flags().StringVar(&opts.Format, "format", "", "Output format: svg or png (from the file extension when empty)")
	render.Flags().Float64Var(&opts.MetresPerUnit, "scale", 10, "Metres per millimetre of output")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve isochrone requests over HTTP and MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			apply("")
			return app.RunService(cmd.Context())
		},
	}
	serve.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides server.addr)")

	initConfig := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(configOut)
			return app.RunInitConfig()
		},
	}
	initConfig.Flags().StringVarP(&configOut, "output", "o", "config.yaml", "Output file")

	demo := &cobra.Command{
		Use:   "demo-graph",
		Short: "Write a synthetic grid road network as GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(demoOut)
			return app.RunDemoGraph()
		},
	}
	demo.Flags().StringVarP(&demoOut, "output", "o", "graph.geojson", "Output file")
	demo.Flags().StringVar(&opts.Center, "center", "8.684177,49.423034", "Grid center as lon,lat")
	demo.Flags().IntVar(&opts.Rows, "rows", 41, "Rows of nodes")
	demo.Flags().IntVar(&opts.Cols, "cols", 41, "Columns of nodes")
	demo.Flags().Float64Var(&opts.StepX, "step-lon", 0.003, "Node spacing in degrees of longitude")
	demo.Flags().Float64Var(&opts.StepY, "step-lat", 0.002, "Node spacing in degrees of latitude")

	root.AddCommand(compute, render, serve, initConfig, demo)
	return root
}

func addRequestFlags(cmd *cobra.Command, opts *AppOptions) {
	f := cmd.Flags()
	f.StringArrayVarP(&opts.Locations, "location", "l", nil, "Source location as lon,lat (repeatable)")
	f.Float64SliceVarP(&opts.Ranges, "range", "r", nil, "Thresholds in seconds or distance units")
	f.Float64Var(&opts.Interval, "interval", 0, "Split a single range into steps of this size")
	f.StringVarP(&opts.Profile, "profile", "p", "cycling-regular", "Travel profile")
	f.StringVar(&opts.RangeType, "range-type", "time", "time or distance")
	f.StringVar(&opts.Units, "units", "", "Distance unit: m, km or mi")
	f.StringVar(&opts.AreaUnits, "area-units", "", "Area unit: m, km or mi (defaults to units)")
	f.Float64Var(&opts.Smoothing, "smoothing", -1, "Smoothing factor 0-100 (negative uses the default)")
	f.StringSliceVar(&opts.Attributes, "attributes", nil, "Attributes: area, reachfactor, total_pop")
	f.BoolVar(&opts.Intersections, "intersections", false, "Include intersections between locations")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("range")
}
