package asset

import "fmt"

// MalformedAssetError reports a node graph that is not a forest of strict trees.
type MalformedAssetError struct {
	// Node is the arena index where the problem was detected.
	Node int
	// Reason describes the problem.
	Reason string
}

func (e *MalformedAssetError) Error() string {
	return fmt.Sprintf("malformed asset: node %d: %s", e.Node, e.Reason)
}
