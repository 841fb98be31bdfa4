package isochrone

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxVisitedNodesExceeded is returned by a Searcher whose node budget ran out
	ErrMaxVisitedNodesExceeded = errors.New("maximum number of visited nodes exceeded")

	// ErrRangeComputationAborted is returned when the context ends mid computation
	ErrRangeComputationAborted = errors.New("range computation aborted")

	// ErrDegeneratePointCloud is returned by hull builders for collinear or tiny inputs
	ErrDegeneratePointCloud = errors.New("degenerate point cloud")

	// ErrUnknownProfile is returned for profile names the searcher does not serve
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrStatisticsUnavailable is returned when total_pop is requested without a provider
	ErrStatisticsUnavailable = errors.New("statistics provider unavailable")

	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

// LocationError ties a failure to the source location that produced it
type LocationError struct {
	Index int
	Err   error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location %d: %v", e.Index, e.Err)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// aborted converts a context error into ErrRangeComputationAborted
func aborted(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRangeComputationAborted, err)
}
