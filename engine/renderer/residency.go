package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/pkg/errors"
)

const (
	attributePosition = "POSITION"
	attributeTexcoord = "TEXCOORD_0"
	modeTriangles     = 4
)

type primitiveKey struct {
	mesh      int
	primitive int
}

// residency is everything uploaded for one asset.
type residency struct {
	assetID uint64

	meshes   map[primitiveKey]handle
	textures map[int]handle
	samplers map[int]handle

	// skipped counts primitives that could not be uploaded.
	skipped int
}

func newResidency(id uint64) *residency {
	return &residency{
		assetID:  id,
		meshes:   make(map[primitiveKey]handle),
		textures: make(map[int]handle),
		samplers: make(map[int]handle),
	}
}

// handles returns every handle owned by the residency.
func (r *residency) handles() []handle {
	out := make([]handle, 0, len(r.meshes)+len(r.textures)+len(r.samplers))
	for _, h := range r.meshes {
		out = append(out, h)
	}
	for _, h := range r.textures {
		out = append(out, h)
	}
	for _, h := range r.samplers {
		out = append(out, h)
	}
	return out
}

// upload creates GPU resources for every triangle primitive and every texture referenced by a material.
// Primitives that cannot be read are skipped and counted.
func (rend *renderer) upload(a *asset.Asset) (*residency, error) {
	res := newResidency(a.ID())

	for mi := range a.Meshes {
		for pi, prim := range a.Meshes[mi].Primitives {
			vertices, indices, err := primitiveGeometry(a, prim)
			if err != nil {
				rend.logger.Debug("[renderer] skipping primitive", "mesh", mi, "primitive", pi, "error", err)
				res.skipped++
				continue
			}
			h, err := rend.backend.CreateMesh(fmt.Sprintf("asset %d mesh %d/%d", a.ID(), mi, pi), vertices, indices)
			if err != nil {
				rend.backend.Release(res.handles()...)
				return nil, errors.Wrapf(err, "failed to upload mesh %d primitive %d", mi, pi)
			}
			res.meshes[primitiveKey{mi, pi}] = h
		}
	}

	for _, m := range a.Materials {
		if m.BaseColorTexture == nil {
			continue
		}
		ti := *m.BaseColorTexture
		if _, done := res.textures[ti]; done {
			continue
		}
		if err := rend.uploadTexture(a, ti, res); err != nil {
			rend.logger.Warn("[renderer] base color texture unavailable", "texture", ti, "error", err)
		}
	}
	return res, nil
}

func (rend *renderer) uploadTexture(a *asset.Asset, ti int, res *residency) error {
	if ti < 0 || ti >= len(a.Textures) {
		return errors.Errorf("texture %d out of range", ti)
	}
	tex := a.Textures[ti]
	if tex.Target != asset.Target2D || len(tex.Sources) == 0 {
		return errors.Errorf("texture %d is not a 2D texture", ti)
	}
	src := tex.Sources[0]
	if src < 0 || src >= len(a.Images) {
		return errors.Errorf("texture %d source %d out of range", ti, src)
	}

	staging, err := common.DecodeRGBA(a.Images[src].Data)
	if err != nil {
		return err
	}

	samplerData := common.DefaultSamplerStagingData()
	if tex.Sampler != nil && *tex.Sampler >= 0 && *tex.Sampler < len(a.Samplers) {
		s := a.Samplers[*tex.Sampler]
		samplerData = common.SamplerStagingDataFromGL(s.MagFilter, s.MinFilter, s.WrapS, s.WrapT)
	}

	th, err := rend.backend.CreateTexture(fmt.Sprintf("asset %d texture %d", a.ID(), ti), *staging)
	if err != nil {
		return err
	}
	sh, err := rend.backend.CreateSampler(fmt.Sprintf("asset %d sampler %d", a.ID(), ti), *samplerData)
	if err != nil {
		rend.backend.Release(th)
		return err
	}
	res.textures[ti] = th
	res.samplers[ti] = sh
	return nil
}

// primitiveGeometry reads a triangle primitive into packed vertices and 32-bit indices.
// Non-indexed primitives get a sequential index list.
func primitiveGeometry(a *asset.Asset, prim asset.Primitive) ([]byte, []uint32, error) {
	if prim.Mode != modeTriangles {
		return nil, nil, errors.Errorf("unsupported primitive mode %d", prim.Mode)
	}
	posIdx, ok := prim.Attributes[attributePosition]
	if !ok {
		return nil, nil, errors.New("primitive has no POSITION attribute")
	}
	positions, err := a.ReadVec3(posIdx)
	if err != nil {
		return nil, nil, err
	}

	var uvs [][2]float32
	if uvIdx, ok := prim.Attributes[attributeTexcoord]; ok {
		uvs, err = a.ReadVec2(uvIdx)
		if err != nil {
			return nil, nil, err
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = a.ReadIndices(*prim.Indices)
		if err != nil {
			return nil, nil, err
		}
		for _, i := range indices {
			if int(i) >= len(positions) {
				return nil, nil, errors.Errorf("index %d exceeds vertex count %d", i, len(positions))
			}
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices) == 0 {
		return nil, nil, errors.New("primitive has no vertices")
	}
	return packVertices(positions, uvs), indices, nil
}
