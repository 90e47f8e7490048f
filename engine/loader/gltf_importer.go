package loader

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	errSparseAccessor  = errors.New("sparse accessors are not supported")
	errMissingGLBChunk = errors.New("buffer has no URI and no GLB binary chunk")
)

// unsupportedExtensions lists required extensions whose geometry cannot be read without a decoder.
var unsupportedExtensions = map[string]bool{
	"KHR_draco_mesh_compression": true,
	"EXT_meshopt_compression":    true,
	"KHR_mesh_quantization":      true,
}

// importDocument converts a decoded glTF document into an asset descriptor.
// Buffers without a URI take the GLB binary chunks in order; data: URIs are decoded inline; every other
// buffer and image URI is resolved against baseDir and left for the pipeline to fetch.
//
// Parameters:
//   - doc: the decoded document
//   - path: the source reference recorded on the asset
//   - baseDir: the directory or URL relative URIs resolve against, or "" to keep them as written
//   - blobs: GLB binary chunks, nil for JSON documents
//
// Returns:
//   - *asset.Asset: the descriptor
//   - error: error if the document uses unsupported features or inline data is malformed
func importDocument(doc *gltfDocument, path, baseDir string, blobs [][]byte) (*asset.Asset, error) {
	for _, ext := range doc.ExtensionsRequired {
		if unsupportedExtensions[ext] {
			return nil, fmt.Errorf("required extension %s is not supported", ext)
		}
	}

	a := asset.New(path)
	a.DefaultScene = doc.Scene

	for _, s := range doc.Scenes {
		a.Scenes = append(a.Scenes, asset.Scene{Name: s.Name, Nodes: s.Nodes})
	}

	a.Nodes = make([]asset.Node, len(doc.Nodes))
	for i := range doc.Nodes {
		a.Nodes[i] = importNode(&doc.Nodes[i])
	}

	for _, m := range doc.Meshes {
		mesh := asset.Mesh{Name: m.Name}
		for _, p := range m.Primitives {
			mode := gltfPrimitiveModeTriangles
			if p.Mode != nil {
				mode = *p.Mode
			}
			mesh.Primitives = append(mesh.Primitives, asset.Primitive{
				Attributes: p.Attributes,
				Indices:    p.Indices,
				Material:   p.Material,
				Mode:       mode,
			})
		}
		a.Meshes = append(a.Meshes, mesh)
	}

	for _, m := range doc.Materials {
		a.Materials = append(a.Materials, importMaterial(&m))
	}

	for _, c := range doc.Cameras {
		cam, err := importCamera(&c)
		if err != nil {
			return nil, err
		}
		a.Cameras = append(a.Cameras, cam)
	}

	for i, acc := range doc.Accessors {
		if acc.Sparse != nil {
			return nil, fmt.Errorf("accessor %d: %w", i, errSparseAccessor)
		}
		a.Accessors = append(a.Accessors, asset.Accessor{
			BufferView:    acc.BufferView,
			ByteOffset:    acc.ByteOffset,
			ComponentType: acc.ComponentType,
			Count:         acc.Count,
			Type:          acc.Type,
			Min:           acc.Min,
			Max:           acc.Max,
		})
	}

	for _, bv := range doc.BufferViews {
		view := asset.BufferView{Buffer: bv.Buffer, ByteOffset: bv.ByteOffset, ByteLength: bv.ByteLength}
		if bv.ByteStride != nil {
			view.ByteStride = *bv.ByteStride
		}
		a.BufferViews = append(a.BufferViews, view)
	}

	nextBlob := 0
	for i, b := range doc.Buffers {
		buf := asset.Buffer{ByteLength: b.ByteLength}
		switch {
		case b.URI == "":
			if nextBlob >= len(blobs) {
				return nil, fmt.Errorf("buffer %d: %w", i, errMissingGLBChunk)
			}
			buf.Data = blobs[nextBlob]
			nextBlob++
		case isDataURI(b.URI):
			data, _, err := decodeDataURI(b.URI)
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		default:
			buf.URI = resolveURI(baseDir, b.URI)
		}
		a.Buffers = append(a.Buffers, buf)
	}

	for _, s := range doc.Samplers {
		sampler := asset.Sampler{Name: s.Name}
		if s.MagFilter != nil {
			sampler.MagFilter = *s.MagFilter
		}
		if s.MinFilter != nil {
			sampler.MinFilter = *s.MinFilter
		}
		if s.WrapS != nil {
			sampler.WrapS = *s.WrapS
		}
		if s.WrapT != nil {
			sampler.WrapT = *s.WrapT
		}
		a.Samplers = append(a.Samplers, sampler)
	}

	for i, img := range doc.Images {
		image := asset.Image{Name: img.Name, MimeType: img.MimeType, BufferView: img.BufferView, Face: asset.FaceNone}
		switch {
		case img.BufferView != nil:
		case isDataURI(img.URI):
			data, mime, err := decodeDataURI(img.URI)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			image.Data = data
			image.MimeType = common.Coalesce(image.MimeType, mime)
		case img.URI != "":
			image.URI = resolveURI(baseDir, img.URI)
		default:
			return nil, fmt.Errorf("image %d has neither uri nor bufferView", i)
		}
		a.Images = append(a.Images, image)
	}

	for _, t := range doc.Textures {
		tex := asset.Texture{Name: t.Name, Sampler: t.Sampler, Target: asset.Target2D}
		if t.Source != nil {
			tex.Sources = []int{*t.Source}
		}
		a.Textures = append(a.Textures, tex)
	}

	return a, nil
}

func importNode(n *gltfNode) asset.Node {
	node := asset.Node{
		Name:     n.Name,
		Children: n.Children,
		Mesh:     n.Mesh,
		Camera:   n.Camera,
	}
	if n.Matrix != nil {
		m := mgl32.Mat4(*n.Matrix)
		node.Matrix = &m
	}
	if n.Translation != nil {
		node.Translation = mgl32.Vec3(*n.Translation)
	}
	if n.Rotation != nil {
		r := n.Rotation
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		node.Rotation = &q
	}
	if n.Scale != nil {
		s := mgl32.Vec3(*n.Scale)
		node.Scale = &s
	}
	return node
}

func importMaterial(m *gltfMaterial) asset.Material {
	mat := asset.Material{
		Name:            m.Name,
		AlphaMode:       asset.AlphaOpaque,
		AlphaCutoff:     0.5,
		DoubleSided:     m.DoubleSided,
		BaseColorFactor: mgl32.Vec4{1, 1, 1, 1},
	}
	switch asset.AlphaMode(m.AlphaMode) {
	case asset.AlphaMask:
		mat.AlphaMode = asset.AlphaMask
	case asset.AlphaBlend:
		mat.AlphaMode = asset.AlphaBlend
	}
	if m.AlphaCutoff != nil {
		mat.AlphaCutoff = *m.AlphaCutoff
	}
	if pbr := m.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mat.BaseColorFactor = mgl32.Vec4(*pbr.BaseColorFactor)
		}
		if pbr.BaseColorTexture != nil {
			mat.BaseColorTexture = asset.Ref(pbr.BaseColorTexture.Index)
		}
	}
	return mat
}

func importCamera(c *gltfCamera) (asset.Camera, error) {
	cam := asset.Camera{Name: c.Name}
	switch c.Type {
	case gltfCameraPerspective:
		if c.Perspective == nil {
			return cam, fmt.Errorf("camera %q has no perspective block", c.Name)
		}
		cam.Projection = asset.ProjectionPerspective
		cam.YFov = c.Perspective.YFov
		cam.AspectRatio = c.Perspective.AspectRatio
		cam.ZNear = c.Perspective.ZNear
		if c.Perspective.ZFar != nil {
			cam.ZFar = *c.Perspective.ZFar
		}
	case gltfCameraOrthographic:
		if c.Orthographic == nil {
			return cam, fmt.Errorf("camera %q has no orthographic block", c.Name)
		}
		cam.Projection = asset.ProjectionOrthographic
		cam.XMag = c.Orthographic.XMag
		cam.YMag = c.Orthographic.YMag
		cam.ZNear = c.Orthographic.ZNear
		cam.ZFar = c.Orthographic.ZFar
	default:
		return cam, fmt.Errorf("camera %q has unknown type %q", c.Name, c.Type)
	}
	return cam, nil
}

// resolveURI turns a URI written in the document into a reference a Fetcher can load.
func resolveURI(baseDir, uri string) string {
	if unescaped, err := url.PathUnescape(uri); err == nil && !common.IsRemote(uri) {
		uri = unescaped
	}
	if baseDir == "" || common.IsRemote(uri) || filepath.IsAbs(uri) {
		return uri
	}
	return common.JoinURI(baseDir, uri)
}
