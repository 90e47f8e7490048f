package asset

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Drawables returns the nodes of a scene that carry a mesh, in depth-first pre-order from the scene roots.
// An out-of-range scene yields nil.
func (a *Asset) Drawables(scene int) []int {
	if scene < 0 || scene >= len(a.Scenes) {
		return nil
	}

	var out []int
	seen := make(map[int]bool)
	stack := make([]int, 0, len(a.Scenes[scene].Nodes))
	roots := a.Scenes[scene].Nodes
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n < 0 || n >= len(a.Nodes) || seen[n] {
			continue
		}
		seen[n] = true

		node := &a.Nodes[n]
		if node.Mesh != nil {
			out = append(out, n)
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return out
}

// IsBlended reports whether any primitive of the node's mesh uses a BLEND material.
func (a *Asset) IsBlended(node int) bool {
	if node < 0 || node >= len(a.Nodes) || a.Nodes[node].Mesh == nil {
		return false
	}
	m := *a.Nodes[node].Mesh
	if m < 0 || m >= len(a.Meshes) {
		return false
	}
	for _, p := range a.Meshes[m].Primitives {
		if p.Material == nil {
			continue
		}
		mat := *p.Material
		if mat >= 0 && mat < len(a.Materials) && a.Materials[mat].AlphaMode == AlphaBlend {
			return true
		}
	}
	return false
}

// Partition splits the drawables of a scene into an opaque set and a blend set.
// Every drawable lands in exactly one of the two, and both keep traversal order.
//
// Parameters:
//   - scene: the scene index
//
// Returns:
//   - []int: node indices drawn without blending
//   - []int: node indices drawn with blending
func (a *Asset) Partition(scene int) (opaque, blend []int) {
	for _, n := range a.Drawables(scene) {
		if a.IsBlended(n) {
			blend = append(blend, n)
		} else {
			opaque = append(opaque, n)
		}
	}
	return opaque, blend
}

// SortBackToFront returns a copy of nodes ordered by decreasing distance between each node's world
// position and eye. Nodes at equal distance keep their relative order.
func (a *Asset) SortBackToFront(nodes []int, eye mgl32.Vec3) []int {
	sorted := make([]int, len(nodes))
	copy(sorted, nodes)

	dist := make(map[int]float32, len(nodes))
	for _, n := range nodes {
		dist[n] = a.Nodes[n].WorldPosition().Sub(eye).Len()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return dist[sorted[i]] > dist[sorted[j]]
	})
	return sorted
}
