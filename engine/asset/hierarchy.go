package asset

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const noParent = -1

// ResolveHierarchy validates the node graph and computes every node's World transform.
// Children are visited with an explicit stack so deep hierarchies do not grow the goroutine stack.
//
// Parameters:
//   - a: the asset whose node arena is resolved in place
//
// Returns:
//   - error: *MalformedAssetError on an out-of-range index, a node with two parents, or a cycle
func ResolveHierarchy(a *Asset) error {
	parents := make([]int, len(a.Nodes))
	for i := range parents {
		parents[i] = noParent
	}

	for i := range a.Nodes {
		for _, c := range a.Nodes[i].Children {
			if c < 0 || c >= len(a.Nodes) {
				return &MalformedAssetError{Node: i, Reason: fmt.Sprintf("child index %d out of range", c)}
			}
			if parents[c] != noParent {
				return &MalformedAssetError{Node: c, Reason: fmt.Sprintf("node has parents %d and %d", parents[c], i)}
			}
			parents[c] = i
		}
	}

	if n, ok := findCycle(parents); ok {
		return &MalformedAssetError{Node: n, Reason: "node is its own ancestor"}
	}

	for si, s := range a.Scenes {
		for _, r := range s.Nodes {
			if r < 0 || r >= len(a.Nodes) {
				return &MalformedAssetError{Node: r, Reason: fmt.Sprintf("scene %d root index out of range", si)}
			}
		}
	}

	type frame struct {
		node   int
		parent mgl32.Mat4
	}
	stack := make([]frame, 0, len(a.Nodes))
	for i := range a.Nodes {
		if parents[i] == noParent {
			stack = append(stack, frame{node: i, parent: mgl32.Ident4()})
		}
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &a.Nodes[f.node]
		n.World = f.parent.Mul4(n.LocalMatrix())
		for _, c := range n.Children {
			stack = append(stack, frame{node: c, parent: n.World})
		}
	}
	return nil
}

// findCycle follows parent links from every node. With at most one parent per node, a cycle is exactly a
// parent chain that returns to a node already on the current chain.
func findCycle(parents []int) (int, bool) {
	const (
		unvisited = iota
		onChain
		rooted
	)
	state := make([]uint8, len(parents))
	chain := make([]int, 0, 8)

	for i := range parents {
		chain = chain[:0]
		j := i
		for j != noParent && state[j] == unvisited {
			state[j] = onChain
			chain = append(chain, j)
			j = parents[j]
		}
		if j != noParent && state[j] == onChain {
			return j, true
		}
		for _, c := range chain {
			state[c] = rooted
		}
	}
	return 0, false
}
