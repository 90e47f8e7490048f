package catalog

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBox(t *testing.T) {
	got := Parse([]Entry{{
		Name: "Box",
		Variants: map[string]string{
			"glTF":        "Box.gltf",
			"glTF-Binary": "Box.glb",
			"glTF-Draco":  "Box-draco.gltf",
		},
	}})

	assert.Equal(t, map[string]string{
		"Box":          "Box/glTF/Box.gltf",
		"Box (Binary)": "Box/glTF-Binary/Box.glb",
	}, got)
}

func TestParseExclusionsAndEmpty(t *testing.T) {
	got := Parse([]Entry{
		{Name: "Duck", Variants: map[string]string{"glTF-Embedded": "Duck.gltf", "glTF-Draco": "Duck.gltf"}},
		{Name: "NoVariants"},
		{Name: "Lantern", Variants: map[string]string{"glTF-pbrSpecularGlossiness": "Lantern.gltf"}},
	})

	assert.Equal(t, map[string]string{
		"Lantern (pbrSpecularGlossiness)": "Lantern/glTF-pbrSpecularGlossiness/Lantern.gltf",
	}, got)
}

func TestParseLastEntryWins(t *testing.T) {
	got := Parse([]Entry{
		{Name: "Box", Variants: map[string]string{"glTF": "first.gltf"}},
		{Name: "Box", Variants: map[string]string{"glTF": "second.gltf"}},
	})
	assert.Equal(t, "Box/glTF/second.gltf", got["Box"])

	// "glTF-X" and "X" share a display name; sorted order makes "glTF-X" win.
	got = Parse([]Entry{{Name: "M", Variants: map[string]string{"X": "a.gltf", "glTF-X": "b.gltf"}}})
	assert.Equal(t, map[string]string{"M (X)": "M/glTF-X/b.gltf"}, got)
}

func TestDecodeAndNames(t *testing.T) {
	entries, err := Decode(strings.NewReader(`[
		{"name": "Box", "variants": {"glTF": "Box.gltf", "glTF-Binary": "Box.glb"}},
		{"name": "Avocado", "screenshot": "s.png", "variants": {"glTF": "Avocado.gltf"}}
	]`))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, []string{"Avocado", "Box", "Box (Binary)"}, Names(Parse(entries)))

	_, err = Decode(strings.NewReader(`{"name": "x"}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"models/model-index.json": {Data: []byte(`[{"name": "Box", "variants": {"glTF": "Box.gltf"}}]`)},
	}
	f := loader.FSFetcher{FS: fsys}

	models, err := Load(context.Background(), f, "models/model-index.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Box": "Box/glTF/Box.gltf"}, models)

	_, err = Load(context.Background(), f, "models/missing.json")
	assert.Error(t, err)
}
