package isochrone

// Sampling constants, in degrees unless stated otherwise
const (
	defaultSearchWidth        = 0.0008
	defaultPointWidth         = 0.005
	relaxedNeighbourThreshold = 0.0035
	tightNeighbourThreshold   = 0.0025

	defaultBufferSize    = 0.0018
	highDetailBufferSize = 0.00018

	// Maps smaller than this keep the tight neighbour threshold
	smallMapEntries = 10000
	// Maps smaller than this use the high detail buffer and keep dead ends
	highDetailEntries = 1000

	defaultDetailFactor = 0.85
	longEdgeMetres      = 300.0
	maxSplitMetres      = 20000.0
	skipGap             = 1000.0

	// DefaultSmoothing is the hull edge length used when no factor is given
	DefaultSmoothing = 0.012
	// MinSmoothing floors the factor-derived hull edge length
	MinSmoothing = 0.006
	// Below this radius the default hull edge length drops to MinSmoothing
	shortRadiusMetres = 5000.0
)

// SamplingConfig holds the per-location sampling parameters. It is built once
// before the threshold loop and passed by value.
type SamplingConfig struct {
	SearchWidth        float64
	PointWidth         float64
	NeighbourThreshold float64
	BufferSize         float64
	DetailFactor       float64
	LongEdge           float64 // metres
	MaxSplitLength     float64 // metres
	SkipGap            float64 // cost units
	HighDetail         bool
}

// NewSamplingConfig sizes the parameters for a map with the given entry count
func NewSamplingConfig(entries int) SamplingConfig {
	cfg := SamplingConfig{
		SearchWidth:        defaultSearchWidth,
		PointWidth:         defaultPointWidth,
		NeighbourThreshold: relaxedNeighbourThreshold,
		BufferSize:         defaultBufferSize,
		DetailFactor:       defaultDetailFactor,
		LongEdge:           longEdgeMetres,
		MaxSplitLength:     maxSplitMetres,
		SkipGap:            skipGap,
	}
	if entries < smallMapEntries {
		cfg.NeighbourThreshold = tightNeighbourThreshold
	}
	if entries < highDetailEntries {
		cfg.BufferSize = highDetailBufferSize
		cfg.HighDetail = true
	}
	return cfg
}

// SmoothingDistance returns the hull edge length in degrees for a threshold
// with the given radius. A negative factor selects fallback, capped at
// MinSmoothing for isochrones shorter than shortRadiusMetres.
func SmoothingDistance(factor, maxRadiusMetres, fallback float64) float64 {
	if factor < 0 {
		if fallback <= 0 {
			fallback = DefaultSmoothing
		}
		if maxRadiusMetres < shortRadiusMetres && fallback > MinSmoothing {
			return MinSmoothing
		}
		return fallback
	}
	d := metresToDegrees(maxRadiusMetres) / 100 * factor
	if d < MinSmoothing {
		return MinSmoothing
	}
	return d
}
