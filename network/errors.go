package network

import (
	"errors"
	"fmt"
)

var (
	// selected bounding box exceeds the configured area limit
	ErrAreaTooLarge = errors.New("selected area is too large, please select a smaller area")
	// nothing qualifies after road-class filtering
	ErrEmptyNetwork = errors.New("no roads found in the selected area")
	// entry or exit selection is empty
	ErrInsufficientEndpoints = errors.New("at least one entry and one exit node are required")
	// a node was selected as both entry and exit without the overlap flag
	ErrEntryExitOverlap = errors.New("a node may not be both entry and exit")
)

// UnknownNodeError reports an endpoint selection that references a node id
// absent from the network.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node id: %s", e.ID)
}
