package routegen

import "errors"

var (
	// vehicle-type percentages do not sum to 100 within tolerance
	ErrInvalidDistribution = errors.New("vehicle type percentages must sum to 100")
	// no path exists between any selected entry/exit pair
	ErrUnreachableEndpoints = errors.New("no route exists between the selected entry and exit points")
)
