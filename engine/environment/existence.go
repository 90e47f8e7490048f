package environment

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ExistenceChecker answers whether an image reference can be fetched.
// Implementations must be safe for concurrent use.
type ExistenceChecker interface {
	// Exists reports whether uri names an existing resource.
	//
	// Parameters:
	//   - ctx: cancels remote checks
	//   - uri: the file path or URL to check
	//
	// Returns:
	//   - bool: true if the resource exists
	Exists(ctx context.Context, uri string) bool
}

// Manifest lists the specular mip counts published for each environment, so probing needs no I/O.
//
//	environments:
//	  papermill:
//	    specular_mips: 10
type Manifest struct {
	Environments map[string]ManifestEntry `yaml:"environments"`
}

// ManifestEntry describes one published environment.
type ManifestEntry struct {
	SpecularMips int `yaml:"specular_mips"`
}

// DecodeManifest reads a YAML manifest.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "failed to decode environment manifest")
	}
	return &m, nil
}

// LoadManifest reads a YAML manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open environment manifest %s", path)
	}
	defer f.Close()
	return DecodeManifest(f)
}

// ManifestChecker answers existence from a Manifest.
type ManifestChecker struct {
	root  string
	known map[string]struct{}
}

var _ ExistenceChecker = &ManifestChecker{}

// NewManifestChecker expands a manifest into the set of image references it declares under root.
// Extensions are ignored when matching, so one manifest serves every ImageFormat.
//
// Parameters:
//   - root: the environment image root the builder is configured with
//   - m: the manifest
//
// Returns:
//   - *ManifestChecker: the checker
func NewManifestChecker(root string, m *Manifest) *ManifestChecker {
	c := &ManifestChecker{root: root, known: make(map[string]struct{})}
	for name, entry := range m.Environments {
		for _, face := range faceNames() {
			c.known[withoutExt(diffuseURI(root, name, face, ""))] = struct{}{}
			for i := 0; i < entry.SpecularMips; i++ {
				c.known[withoutExt(specularURI(root, name, face, i, ""))] = struct{}{}
			}
		}
	}
	return c
}

func (c *ManifestChecker) Exists(_ context.Context, uri string) bool {
	_, ok := c.known[withoutExt(uri)]
	return ok
}

// FSChecker answers existence with fs.Stat against a filesystem.
type FSChecker struct {
	FS fs.FS
}

var _ ExistenceChecker = FSChecker{}

func (c FSChecker) Exists(_ context.Context, uri string) bool {
	name := strings.TrimPrefix(path.Clean(filepath.ToSlash(uri)), "/")
	_, err := fs.Stat(c.FS, name)
	return err == nil
}

// OSChecker answers existence with os.Stat.
type OSChecker struct{}

var _ ExistenceChecker = OSChecker{}

func (OSChecker) Exists(_ context.Context, uri string) bool {
	info, err := os.Stat(uri)
	return err == nil && !info.IsDir()
}

// HTTPChecker answers existence with a HEAD request; only 200 counts as present.
type HTTPChecker struct {
	Client *http.Client
}

var _ ExistenceChecker = HTTPChecker{}

func (c HTTPChecker) Exists(ctx context.Context, uri string) bool {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func withoutExt(uri string) string {
	return strings.TrimSuffix(filepath.ToSlash(uri), path.Ext(uri))
}
