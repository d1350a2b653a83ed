package quality

import "errors"

// Sentinel kinds for quality assessment errors.
var (
	ErrInvalidWeights  = errors.New("quality weights must be non-negative and sum to 1")
	ErrMissingAnalyzer = errors.New("no analyzer registered for weighted dimension")
)
