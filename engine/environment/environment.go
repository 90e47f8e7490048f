// Package environment injects image-based-lighting resources into an asset before its sub-resources are fetched.
package environment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
)

const (
	defaultRoot         = "assets/images"
	defaultLUTPath      = "assets/images/brdfLUT.png"
	defaultMaxMipLevels = 16
)

// Assets records where the environment resources landed inside the asset's shared lists.
// Every index is absolute.
type Assets struct {
	DiffuseSampler  int
	SpecularSampler int
	LUTSampler      int

	DiffuseImages  []int
	SpecularImages []int
	LUTImage       int

	// SpecularMipLevels holds the number of mip levels found for each face, in asset.CubeFaces order.
	SpecularMipLevels [6]int

	DiffuseTexture  int
	SpecularTexture int
	LUTTexture      int
}

// Builder appends environment map samplers, images and textures to an asset.
type Builder interface {
	// Build appends the diffuse and specular cube maps and the BRDF lookup table for the named environment.
	// The asset is left untouched when an error is returned.
	//
	// Parameters:
	//   - ctx: cancels existence probing
	//   - a: the asset to extend
	//   - name: the environment name, used as a directory under the image root
	//   - format: the encoding of the environment images
	//
	// Returns:
	//   - *Assets: absolute indices of everything appended
	//   - error: *UnsupportedFormatError for a format outside ImageFormat, or the context error
	Build(ctx context.Context, a *asset.Asset, name string, format ImageFormat) (*Assets, error)

	// Root returns the directory or URL environment images are resolved under.
	Root() string
}

type builder struct {
	root         string
	lutPath      string
	checker      ExistenceChecker
	maxMipLevels int
	logger       *slog.Logger
}

var _ Builder = &builder{}

// NewBuilder creates an environment Builder.
// Defaults: images under "assets/images", LUT at "assets/images/brdfLUT.png", existence checked with os.Stat, at most 16 specular mips.
//
// Parameters:
//   - options: variadic list of BuilderOption functions
//
// Returns:
//   - Builder: the environment builder
func NewBuilder(options ...BuilderOption) Builder {
	b := &builder{
		root:         defaultRoot,
		lutPath:      defaultLUTPath,
		checker:      OSChecker{},
		maxMipLevels: defaultMaxMipLevels,
		logger:       slog.Default(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *builder) Root() string {
	return b.root
}

func (b *builder) Build(ctx context.Context, a *asset.Asset, name string, format ImageFormat) (*Assets, error) {
	ext, err := format.Extension()
	if err != nil {
		return nil, err
	}
	mime, err := format.MimeType()
	if err != nil {
		return nil, err
	}

	// Probe before touching the asset so a cancelled probe leaves it unchanged.
	var mipCounts [6]int
	for fi, face := range asset.CubeFaces {
		for i := 0; i < b.maxMipLevels; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !b.checker.Exists(ctx, specularURI(b.root, name, face.String(), i, ext)) {
				break
			}
			mipCounts[fi]++
		}
		if mipCounts[fi] == 0 {
			b.logger.Warn("[environment] no specular mips found", "environment", name, "face", face.String())
		}
	}

	out := &Assets{SpecularMipLevels: mipCounts}

	out.DiffuseSampler = len(a.Samplers)
	out.SpecularSampler = out.DiffuseSampler + 1
	out.LUTSampler = out.DiffuseSampler + 2
	a.Samplers = append(a.Samplers,
		asset.Sampler{Name: "diffuse", MagFilter: common.GLLinear, MinFilter: common.GLLinear, WrapS: common.GLClampToEdge, WrapT: common.GLClampToEdge},
		asset.Sampler{Name: "specular", MagFilter: common.GLLinear, MinFilter: common.GLLinearMipmapLinear, WrapS: common.GLClampToEdge, WrapT: common.GLClampToEdge},
		asset.Sampler{Name: "lut", MagFilter: common.GLLinear, MinFilter: common.GLLinear, WrapS: common.GLClampToEdge, WrapT: common.GLClampToEdge},
	)

	for _, face := range asset.CubeFaces {
		out.DiffuseImages = append(out.DiffuseImages, len(a.Images))
		a.Images = append(a.Images, asset.Image{
			Name:     fmt.Sprintf("diffuse_%s", face),
			URI:      diffuseURI(b.root, name, face.String(), ext),
			MimeType: mime,
			Face:     face,
		})
	}
	for fi, face := range asset.CubeFaces {
		for i := 0; i < mipCounts[fi]; i++ {
			out.SpecularImages = append(out.SpecularImages, len(a.Images))
			a.Images = append(a.Images, asset.Image{
				Name:     fmt.Sprintf("specular_%s_%d", face, i),
				URI:      specularURI(b.root, name, face.String(), i, ext),
				MimeType: mime,
				Face:     face,
				MipLevel: i,
			})
		}
	}
	out.LUTImage = len(a.Images)
	a.Images = append(a.Images, asset.Image{Name: "brdfLUT", URI: b.lutPath, MimeType: "image/png", Face: asset.FaceNone})

	out.DiffuseTexture = len(a.Textures)
	out.SpecularTexture = out.DiffuseTexture + 1
	out.LUTTexture = out.DiffuseTexture + 2
	a.Textures = append(a.Textures,
		asset.Texture{Name: "diffuse", Sampler: asset.Ref(out.DiffuseSampler), Sources: out.DiffuseImages, Target: asset.TargetCubeMap},
		asset.Texture{Name: "specular", Sampler: asset.Ref(out.SpecularSampler), Sources: out.SpecularImages, Target: asset.TargetCubeMap},
		asset.Texture{Name: "lut", Sampler: asset.Ref(out.LUTSampler), Sources: []int{out.LUTImage}, Target: asset.Target2D},
	)

	b.logger.Debug("[environment] injected", "environment", name, "format", format.String(), "images", len(out.DiffuseImages)+len(out.SpecularImages)+1)
	return out, nil
}

func diffuseURI(root, env, face, ext string) string {
	return common.JoinURI(root, env, "diffuse", fmt.Sprintf("diffuse_%s_0%s", face, ext))
}

func specularURI(root, env, face string, mip int, ext string) string {
	return common.JoinURI(root, env, "specular", fmt.Sprintf("specular_%s_%d%s", face, mip, ext))
}

func faceNames() []string {
	names := make([]string, 0, len(asset.CubeFaces))
	for _, f := range asset.CubeFaces {
		names = append(names, f.String())
	}
	return names
}
