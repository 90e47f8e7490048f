// Package catalog flattens a model index into display names and model paths.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/pkg/errors"
)

// CanonicalVariant is the variant displayed under the bare model name.
const CanonicalVariant = "glTF"

const variantPrefix = "glTF-"

// excludedVariants are encodings the loader does not decode.
var excludedVariants = map[string]struct{}{
	"glTF-Draco":    {},
	"glTF-Embedded": {},
}

// Entry is one model in the index. Variants maps a variant name to the file name inside that variant's folder.
type Entry struct {
	Name     string            `json:"name"`
	Variants map[string]string `json:"variants,omitempty"`
}

// Parse flattens entries into a display name to path mapping.
// The canonical variant is listed under the model name; any other variant is listed as "Name (Variant)" with the
// "glTF-" prefix removed. Paths are "name/variant/file". Later entries overwrite earlier ones with the same
// display name, and variants within an entry are visited in sorted order.
//
// Parameters:
//   - entries: the catalog entries
//
// Returns:
//   - map[string]string: display name to model path
func Parse(entries []Entry) map[string]string {
	models := make(map[string]string)
	for _, e := range entries {
		variants := make([]string, 0, len(e.Variants))
		for v := range e.Variants {
			if _, skip := excludedVariants[v]; !skip {
				variants = append(variants, v)
			}
		}
		sort.Strings(variants)

		for _, v := range variants {
			models[DisplayName(e.Name, v)] = path.Join(e.Name, v, e.Variants[v])
		}
	}
	return models
}

// DisplayName returns the name a model variant is listed under.
func DisplayName(name, variant string) string {
	if variant == CanonicalVariant {
		return name
	}
	return name + " (" + strings.TrimPrefix(variant, variantPrefix) + ")"
}

// Names returns the display names of models in sorted order.
func Names(models map[string]string) []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode reads a JSON model index.
func Decode(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "failed to decode model index")
	}
	return entries, nil
}

// Load fetches and parses the model index at uri.
//
// Parameters:
//   - ctx: the fetch context
//   - f: the fetcher used for uri
//   - uri: the model index location, a file path or URL
//
// Returns:
//   - map[string]string: display name to model path
//   - error: error if the index cannot be fetched or decoded
func Load(ctx context.Context, f loader.Fetcher, uri string) (map[string]string, error) {
	data, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch model index %s", uri)
	}
	entries, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Parse(entries), nil
}
