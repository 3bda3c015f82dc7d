// File: internal/model/resolve.go
package model

import (
	"fmt"
	"math"
	"sort"
)

// channelStep is the granularity channel widths are rounded up to after
// scaling, keeping convolutions hardware friendly.
const channelStep = 8

// ResolvedLayer is one layer after a scale has been applied: global
// index, scaled repeats, and channel-scaled arguments.
type ResolvedLayer struct {
	Index   int
	From    int
	Repeats int
	Module  string
	Args    []any
}

// Resolved is a model definition with a named scale applied, flattened
// into a single backbone-then-head layer table.
type Resolved struct {
	Scale  string
	NC     int
	Layers []ResolvedLayer
}

// Resolve applies the named scale to the definition. Repeats are scaled
// by the depth multiplier, and the leading channel argument of every
// module except Classify is scaled by the width multiplier, clamped to
// max_channels, and rounded up to a multiple of eight. Classify's
// argument is the class count and is never channel math.
func (d *Definition) Resolve(code string) (*Resolved, error) {
	entry, ok := d.Scales[code]
	if !ok {
		return nil, fmt.Errorf("unknown scale code %q (available: %v)", code, availableScales(d.Scales))
	}

	res := &Resolved{Scale: code, NC: d.NC}
	index := 0
	for _, section := range [][]LayerSpec{d.Backbone, d.Head} {
		for _, layer := range section {
			args := append([]any(nil), layer.Args...)
			if layer.Module != ModuleClassify && len(args) > 0 {
				if c, ok := args[0].(int); ok {
					args[0] = scaleChannels(c, entry.Width, entry.MaxChannels)
				}
			}
			res.Layers = append(res.Layers, ResolvedLayer{
				Index:   index,
				From:    layer.From,
				Repeats: scaleRepeats(layer.Repeats, entry.Depth),
				Module:  layer.Module,
				Args:    args,
			})
			index++
		}
	}
	return res, nil
}

// scaleRepeats applies the depth multiplier. Single repeats stay single
// so structural layers are never scaled away.
func scaleRepeats(n int, depth float64) int {
	if n <= 1 {
		return n
	}
	r := int(math.Round(float64(n) * depth))
	if r < 1 {
		return 1
	}
	return r
}

// scaleChannels applies the width multiplier, clamps to maxChannels, and
// rounds up to the channel step.
func scaleChannels(c int, width float64, maxChannels int) int {
	scaled := math.Min(float64(c)*width, float64(maxChannels))
	return int(math.Ceil(scaled/channelStep)) * channelStep
}

func availableScales(scales map[string]ScaleEntry) []string {
	codes := make([]string, 0, len(scales))
	for code := range scales {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
