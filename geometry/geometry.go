// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package geometry implements CPU-side buffer geometries.
package geometry

import (
	"errors"
)

const prefix = "geometry: "

func newErr(reason string) error { return errors.New(prefix + reason) }

// DrawMode specifies how vertices (or indices) are
// assembled into primitives.
// Values match glTF's mesh.primitive.mode.
type DrawMode int

// Draw modes.
const (
	Points DrawMode = iota
	Lines
	LineLoop
	LineStrip
	Triangles
	TriangleStrip
	TriangleFan
)

// String implements fmt.Stringer.
func (m DrawMode) String() string {
	switch m {
	case Points:
		return "Points"
	case Lines:
		return "Lines"
	case LineLoop:
		return "LineLoop"
	case LineStrip:
		return "LineStrip"
	case Triangles:
		return "Triangles"
	case TriangleStrip:
		return "TriangleStrip"
	case TriangleFan:
		return "TriangleFan"
	default:
		return "!geometry.DrawMode"
	}
}

// Common attribute names.
const (
	Position   = "position"
	Normal     = "normal"
	Tangent    = "tangent"
	UV         = "uv"
	UV1        = "uv1"
	Color      = "color"
	SkinIndex  = "skinIndex"
	SkinWeight = "skinWeight"
)

// MaxItemSize is the largest number of components an
// attribute may have per vertex (i.e., a 4x4 matrix).
const MaxItemSize = 16

// Attribute is a vertex attribute buffer.
// Normalized indicates that Data holds integer values
// which consumers must map to [0, 1] or [-1, 1].
type Attribute struct {
	Data       []float32
	ItemSize   int
	Normalized bool
}

// Count returns the number of vertices in a.
func (a *Attribute) Count() int {
	if a.ItemSize <= 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// Clone returns a deep copy of a.
func (a *Attribute) Clone() *Attribute {
	b := *a
	b.Data = append([]float32(nil), a.Data...)
	return &b
}

// check checks that a is well-formed.
func (a *Attribute) check(name string) error {
	switch {
	case a == nil:
		return newErr("nil attribute " + name)
	case a.ItemSize < 1 || a.ItemSize > MaxItemSize:
		return newErr("invalid item size for attribute " + name)
	case len(a.Data)%a.ItemSize != 0:
		return newErr("data length of attribute " + name + " is not a multiple of its item size")
	}
	return nil
}

// Source is anything that exposes vertex attributes and,
// optionally, an index buffer.
// Implementations must not expect callers to modify the
// returned values.
type Source interface {
	Attributes() map[string]*Attribute
	// Index returns nil if the source is not indexed.
	Index() []uint32
}

// Geometry is a Source that can be edited and that
// can copy from other sources.
type Geometry interface {
	Source
	Attribute(name string) *Attribute
	SetAttribute(name string, a *Attribute)
	SetIndex(index []uint32)
	Copy(src Source) error
}

// Attrs is a plain set of attributes.
// It implements Source, but not Geometry.
type Attrs map[string]*Attribute

// Attributes implements Source.
func (a Attrs) Attributes() map[string]*Attribute { return a }

// Index implements Source.
// Attrs is never indexed.
func (a Attrs) Index() []uint32 { return nil }

// Normalize returns a Geometry holding the contents of src.
// If src already is a Geometry, it is returned as-is.
// Otherwise, a new *Buffer is created and src is copied
// into it.
//
// A nil *Buffer is treated as a nil source.
//
// mode is currently ignored: the topology of src is not
// changed, so strips and fans remain strips and fans.
func Normalize(src Source, mode DrawMode) (Geometry, error) {
	if b, ok := src.(*Buffer); ok && b == nil {
		return nil, newErr("nil source")
	}
	if g, ok := src.(Geometry); ok {
		return g, nil
	}
	b := new(Buffer)
	if err := b.Copy(src); err != nil {
		return nil, err
	}
	return b, nil
}
