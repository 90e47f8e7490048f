package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
)

// Common errors returned by the container decoder
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errGLBTooSmall        = errors.New("GLB file too small")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidDataURI     = errors.New("invalid data URI")
)

// DecodeBinaryContainer splits a GLB container into its JSON chunk and binary chunks.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
//
// Parameters:
//   - data: the full GLB bytes
//
// Returns:
//   - []byte: the JSON chunk
//   - [][]byte: the BIN chunks in file order (at most one for conforming files)
//   - error: error if the header or chunk layout is invalid
func DecodeBinaryContainer(data []byte) ([]byte, [][]byte, error) {
	if len(data) < 12 {
		return nil, nil, errGLBTooSmall
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, nil, errInvalidGLBVersion
	}

	var jsonData []byte
	var blobs [][]byte

	for {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return nil, nil, fmt.Errorf("chunk length %d exceeds remaining %d bytes", chunkHeader.ChunkLength, r.Len())
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, nil, fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunkHeader.ChunkType {
		case gltfGLBChunkJSON:
			if jsonData == nil {
				jsonData = chunkData
			}
		case gltfGLBChunkBIN:
			blobs = append(blobs, chunkData)
		}
	}

	if jsonData == nil {
		return nil, nil, errMissingJSONChunk
	}
	return jsonData, blobs, nil
}

// DecodeJSONDocument decodes a glTF JSON document into an asset descriptor.
// External buffers and images are not fetched; their URIs are resolved against baseDir.
//
// Parameters:
//   - path: the document reference, recorded as Asset.Path
//   - baseDir: the directory or URL relative URIs resolve against, or "" to keep them as written
//   - data: the JSON bytes
//
// Returns:
//   - *asset.Asset: the descriptor with inline data: URIs already decoded
//   - error: *ParseError if the document is malformed
func DecodeJSONDocument(path, baseDir string, data []byte) (*asset.Asset, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	a, err := importDocument(doc, path, baseDir, nil)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return a, nil
}

func decodeDocument(data []byte) (*gltfDocument, error) {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, errInvalidGLTFVersion
	}
	return &doc, nil
}

func isDataURI(uri string) bool {
	return strings.HasPrefix(uri, "data:")
}

// decodeDataURI decodes a base64 data URI into raw bytes and extracts the MIME type.
// Format: data:[<mediatype>][;base64],<data>
func decodeDataURI(uri string) ([]byte, string, error) {
	if !isDataURI(uri) {
		return nil, "", errInvalidDataURI
	}

	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("%w: no comma found", errInvalidDataURI)
	}

	header := uri[5:commaIdx]
	encoded := uri[commaIdx+1:]

	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}
