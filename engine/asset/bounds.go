package asset

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const positionAttribute = "POSITION"

// Extents returns the world-space bounding box of a scene's drawables.
// Each primitive's POSITION min/max is transformed by the node's world matrix and replaced by the cube around
// its bounding sphere, so rotated nodes never produce a box smaller than the geometry.
// Requires ResolveHierarchy to have run.
//
// Parameters:
//   - scene: the scene index
//
// Returns:
//   - mgl32.Vec3: the minimum corner
//   - mgl32.Vec3: the maximum corner
//   - bool: false when no primitive contributes bounds
func (a *Asset) Extents(scene int) (mgl32.Vec3, mgl32.Vec3, bool) {
	inf := float32(math.Inf(1))
	lo := mgl32.Vec3{inf, inf, inf}
	hi := mgl32.Vec3{-inf, -inf, -inf}
	found := false

	for _, n := range a.Drawables(scene) {
		node := &a.Nodes[n]
		mesh := *node.Mesh
		if mesh < 0 || mesh >= len(a.Meshes) {
			continue
		}
		for _, p := range a.Meshes[mesh].Primitives {
			accIndex, ok := p.Attributes[positionAttribute]
			if !ok || accIndex < 0 || accIndex >= len(a.Accessors) {
				continue
			}
			acc := &a.Accessors[accIndex]
			if len(acc.Min) < 3 || len(acc.Max) < 3 {
				continue
			}

			pMin := mgl32.TransformCoordinate(mgl32.Vec3{acc.Min[0], acc.Min[1], acc.Min[2]}, node.World)
			pMax := mgl32.TransformCoordinate(mgl32.Vec3{acc.Max[0], acc.Max[1], acc.Max[2]}, node.World)
			center := pMin.Add(pMax).Mul(0.5)
			radius := pMax.Sub(center).Len()

			for i := 0; i < 3; i++ {
				lo[i] = min(lo[i], center[i]-radius)
				hi[i] = max(hi[i], center[i]+radius)
			}
			found = true
		}
	}
	return lo, hi, found
}
