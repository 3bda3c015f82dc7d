// File: internal/model/model_test.go
package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// classifierYAML is a representative classification model definition:
// a full scaling table and a C2f backbone feeding a Classify head.
const classifierYAML = `
nc: 1000
scales:
  n: [0.33, 0.25, 1024]
  s: [0.33, 0.50, 1024]
  m: [0.67, 0.75, 1024]
  l: [1.00, 1.00, 1024]
  x: [1.00, 1.25, 1024]

backbone:
  - [-1, 1, Conv, [64, 3, 2]]
  - [-1, 1, Conv, [128, 3, 2]]
  - [-1, 3, C2f, [128, true]]
  - [-1, 1, Conv, [256, 3, 2]]
  - [-1, 6, C2f, [256, true]]
  - [-1, 1, CBAM, [256]]
  - [-1, 1, Conv, [512, 3, 2]]
  - [-1, 6, C2f, [512, true]]
  - [-1, 1, Conv, [1024, 3, 2]]
  - [-1, 3, C2f, [1024, true]]

head:
  - [-1, 1, Classify, [1000]]
`

func parseClassifier(t *testing.T) *Definition {
	t.Helper()
	def, err := Parse([]byte(classifierYAML))
	require.NoError(t, err)
	return def
}

// -- Parsing Tests --

func TestParseClassifier(t *testing.T) {
	def := parseClassifier(t)

	assert.Equal(t, 1000, def.NC)
	require.Len(t, def.Scales, 5)
	assert.Equal(t, ScaleEntry{Depth: 0.33, Width: 0.25, MaxChannels: 1024}, def.Scales["n"])

	require.Len(t, def.Backbone, 10)
	require.Len(t, def.Head, 1)

	first := def.Backbone[0]
	assert.Equal(t, -1, first.From)
	assert.Equal(t, 1, first.Repeats)
	assert.Equal(t, ModuleConv, first.Module)
	assert.Equal(t, []any{64, 3, 2}, first.Args)

	c2f := def.Backbone[2]
	assert.Equal(t, 3, c2f.Repeats)
	assert.Equal(t, []any{128, true}, c2f.Args)

	assert.NoError(t, def.Validate())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("nc: 10\nbackbones: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backbones")
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document is empty")
}

func TestParseTupleErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "short layer tuple",
			yaml:    "backbone:\n  - [-1, 1, Conv]\n",
			wantErr: "[from, repeats, module, args] tuple",
		},
		{
			name:    "args not a sequence",
			yaml:    "backbone:\n  - [-1, 1, Conv, 64]\n",
			wantErr: "args must be a sequence",
		},
		{
			name:    "nested arg",
			yaml:    "backbone:\n  - [-1, 1, Conv, [[64]]]\n",
			wantErr: "arg 0 must be a scalar",
		},
		{
			name:    "non-integer from",
			yaml:    "backbone:\n  - [prev, 1, Conv, [64]]\n",
			wantErr: "layer from",
		},
		{
			name:    "short scale tuple",
			yaml:    "scales:\n  n: [0.33, 0.25]\n",
			wantErr: "[depth, width, max_channels] tuple",
		},
		{
			name:    "non-numeric depth",
			yaml:    "scales:\n  n: [deep, 0.25, 1024]\n",
			wantErr: "scale depth",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -- Round-Trip Tests --

func TestRoundTrip(t *testing.T) {
	def := parseClassifier(t)

	data, err := yaml.Marshal(def)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)

	if diff := cmp.Diff(def, again); diff != "" {
		t.Fatalf("round trip changed the definition (-first +second):\n%s", diff)
	}
}

func TestRoundTripKeepsTupleShape(t *testing.T) {
	def := parseClassifier(t)

	data, err := yaml.Marshal(def)
	require.NoError(t, err)

	assert.Contains(t, string(data), "[-1, 1, Conv, [64, 3, 2]]")
	assert.Contains(t, string(data), "[0.33, 0.25, 1024]")
}

// -- Validation Tests --

func TestValidateFromReferences(t *testing.T) {
	t.Run("forward reference", func(t *testing.T) {
		def := parseClassifier(t)
		def.Backbone[2].From = 7

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backbone layer 2")
		assert.Contains(t, err.Error(), "previously defined layer")
	})

	t.Run("head indexes past the backbone", func(t *testing.T) {
		// The head starts at global index 10, so from 9 is legal there.
		def := parseClassifier(t)
		def.Head[0].From = 9
		assert.NoError(t, def.Validate())
	})

	t.Run("self reference in head", func(t *testing.T) {
		def := parseClassifier(t)
		def.Head[0].From = 10

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "head layer 0")
	})

	t.Run("negative reference other than -1", func(t *testing.T) {
		def := parseClassifier(t)
		def.Backbone[1].From = -2

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be -1 or the index")
	})
}

func TestValidateScales(t *testing.T) {
	t.Run("missing scale code", func(t *testing.T) {
		def := parseClassifier(t)
		delete(def.Scales, "m")

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing scale code "m"`)
	})

	t.Run("unknown scale code", func(t *testing.T) {
		def := parseClassifier(t)
		def.Scales["xl"] = ScaleEntry{Depth: 1, Width: 1.5, MaxChannels: 2048}

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown scale code "xl"`)
	})

	t.Run("non-positive multiplier", func(t *testing.T) {
		def := parseClassifier(t)
		def.Scales["s"] = ScaleEntry{Depth: 0, Width: 0.5, MaxChannels: 1024}

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scales.s")
		assert.Contains(t, err.Error(), "depth must be greater than zero")
	})
}

func TestValidateLayers(t *testing.T) {
	t.Run("unknown module", func(t *testing.T) {
		def := parseClassifier(t)
		def.Backbone[0].Module = "Transformer"

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown module "Transformer"`)
	})

	t.Run("negative repeats", func(t *testing.T) {
		def := parseClassifier(t)
		def.Backbone[4].Repeats = -1

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "repeats must not be negative")
	})

	t.Run("missing head", func(t *testing.T) {
		def := parseClassifier(t)
		def.Head = nil

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "head must define at least one layer")
	})

	t.Run("non-positive class count", func(t *testing.T) {
		def := parseClassifier(t)
		def.NC = 0

		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nc must be a positive class count")
	})
}
