package camera

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	pkgerrors "github.com/pkg/errors"
)

var (
	errCameraIndexRange = errors.New("camera index out of range")
	errCameraNotPlaced  = errors.New("camera is not referenced by any node")
)

// FromAsset builds the view of a camera embedded in an asset.
// The first node referencing the camera places it; the view matrix is the inverse of that node's world transform.
// The asset must have been through asset.ResolveHierarchy.
//
// Parameters:
//   - a: the asset
//   - index: the camera index into a.Cameras
//   - aspect: the viewport aspect ratio, used when the camera does not declare one
//
// Returns:
//   - View: the camera view
//   - error: error if the index is out of range or no node references the camera
func FromAsset(a *asset.Asset, index int, aspect float32) (View, error) {
	if index < 0 || index >= len(a.Cameras) {
		return View{}, pkgerrors.Wrapf(errCameraIndexRange, "camera %d of %d", index, len(a.Cameras))
	}
	cam := a.Cameras[index]

	for i := range a.Nodes {
		n := &a.Nodes[i]
		if n.Camera == nil || *n.Camera != index {
			continue
		}
		if cam.AspectRatio != nil && *cam.AspectRatio > 0 {
			aspect = *cam.AspectRatio
		}
		zfar := cam.ZFar
		if zfar <= 0 {
			// glTF allows an infinite perspective projection; a large finite far plane stands in for it.
			zfar = cam.ZNear * 1e6
		}
		return View{
			Position:   n.WorldPosition(),
			View:       n.World.Inv(),
			Projection: projectionMatrix(cam.Projection, cam.YFov, aspect, cam.XMag, cam.YMag, cam.ZNear, zfar),
		}, nil
	}
	return View{}, pkgerrors.Wrapf(errCameraNotPlaced, "camera %d", index)
}
