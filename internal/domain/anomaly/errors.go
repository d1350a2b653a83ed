package anomaly

import "errors"

// ErrInsufficientData is returned when the table has too few rows or no
// usable feature columns for the detectors to fit.
var ErrInsufficientData = errors.New("insufficient data for anomaly detection")
