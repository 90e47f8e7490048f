package loader

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-viewer/common"
)

// File is an opened input such as a dropped file. Name is the base name used for sibling lookups.
type File interface {
	Name() string
	ReadAll(ctx context.Context) ([]byte, error)
}

// MemoryFile is a File backed by bytes already in memory.
type MemoryFile struct {
	FileName string
	Data     []byte
}

var _ File = MemoryFile{}

func (f MemoryFile) Name() string {
	return f.FileName
}

func (f MemoryFile) ReadAll(_ context.Context) ([]byte, error) {
	return f.Data, nil
}

// OSFile is a File on local disk.
type OSFile struct {
	Path string
}

var _ File = OSFile{}

func (f OSFile) Name() string {
	return filepath.Base(f.Path)
}

// Dir is the directory relative URIs in the file resolve against when no sibling was dropped for them.
func (f OSFile) Dir() string {
	return filepath.Dir(f.Path)
}

func (f OSFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// Reference identifies what to load: either a path under a base path, or a file handle with the sibling files
// dropped alongside it.
type Reference struct {
	// Path is the resolved document reference. Empty when File is set.
	Path string
	// File is the document handle for drop loads.
	File File
	// Siblings are the other files dropped with File; external URIs resolve against their names.
	Siblings []File
}

// PathReference builds a Reference for modelPath under basePath.
// Absolute paths and URLs are used as given.
//
// Parameters:
//   - modelPath: the model path, usually a catalog entry such as "Box/glTF/Box.gltf"
//   - basePath: the directory or URL model paths are relative to
//
// Returns:
//   - Reference: the path reference
func PathReference(modelPath, basePath string) Reference {
	if basePath == "" || common.IsRemote(modelPath) || filepath.IsAbs(modelPath) {
		return Reference{Path: modelPath}
	}
	return Reference{Path: common.JoinURI(basePath, modelPath)}
}

// FileReference builds a Reference for a dropped container and its siblings.
func FileReference(main File, siblings ...File) Reference {
	return Reference{File: main, Siblings: siblings}
}

// Name returns the document name: the file name for drop loads, the path otherwise.
func (r Reference) Name() string {
	if r.File != nil {
		return r.File.Name()
	}
	return r.Path
}

// IsBinary reports whether the reference names a binary (.glb) container.
func (r Reference) IsBinary() bool {
	return strings.EqualFold(path.Ext(filepath.ToSlash(r.Name())), ".glb")
}

// baseDir is the directory external URIs resolve against; drop loads resolve by sibling name instead.
func (r Reference) baseDir() string {
	if r.File != nil {
		return ""
	}
	return common.DirOf(r.Path)
}

// fileDir is the directory of a dropped local file, or "" when the file has no location on disk.
func (r Reference) fileDir() string {
	if f, ok := r.File.(interface{ Dir() string }); ok {
		return f.Dir()
	}
	return ""
}

// IsContainer reports whether name is a .gltf or .glb file, case-insensitively.
func IsContainer(name string) bool {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(name)))
	return ext == ".gltf" || ext == ".glb"
}
