// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Group identifies a range of vertices (or indices)
// to be drawn with a given material.
type Group struct {
	Start    int
	Count    int
	Material int
}

// DrawRange restricts which vertices (or indices) are
// drawn. A negative Count means no upper bound.
type DrawRange struct {
	Start int
	Count int
}

// Buffer is a geometry backed by attribute buffers.
// The zero value is an empty geometry ready for use.
// Buffer implements Geometry.
type Buffer struct {
	Name string

	attrs  map[string]*Attribute
	index  []uint32
	groups []Group
	rng    *DrawRange
}

// Attributes implements Source.
func (b *Buffer) Attributes() map[string]*Attribute { return b.attrs }

// Index implements Source.
func (b *Buffer) Index() []uint32 { return b.index }

// Attribute returns the attribute identified by name,
// or nil if b has no such attribute.
func (b *Buffer) Attribute(name string) *Attribute { return b.attrs[name] }

// SetAttribute sets the attribute identified by name.
// A nil a removes the attribute.
func (b *Buffer) SetAttribute(name string, a *Attribute) {
	if a == nil {
		delete(b.attrs, name)
		return
	}
	if b.attrs == nil {
		b.attrs = make(map[string]*Attribute)
	}
	b.attrs[name] = a
}

// SetIndex sets the index buffer.
// A nil index makes b non-indexed.
func (b *Buffer) SetIndex(index []uint32) { b.index = index }

// Groups returns b's groups.
func (b *Buffer) Groups() []Group { return b.groups }

// AddGroup appends a new group to b.
func (b *Buffer) AddGroup(start, count, material int) {
	b.groups = append(b.groups, Group{start, count, material})
}

// ClearGroups removes all groups from b.
func (b *Buffer) ClearGroups() { b.groups = nil }

// DrawRange returns b's draw range.
// It defaults to {0, -1}.
func (b *Buffer) DrawRange() DrawRange {
	if b.rng == nil {
		return DrawRange{0, -1}
	}
	return *b.rng
}

// SetDrawRange sets b's draw range.
func (b *Buffer) SetDrawRange(start, count int) {
	b.rng = &DrawRange{start, count}
}

// VertexCount returns the number of vertices in the
// Position attribute.
func (b *Buffer) VertexCount() int {
	if a := b.attrs[Position]; a != nil {
		return a.Count()
	}
	return 0
}

// Copy replaces b's attributes and index with copies of
// src's. If src is a *Buffer, its name, groups and draw
// range are copied as well.
// b is not modified if src is not well-formed.
func (b *Buffer) Copy(src Source) error {
	if src == nil {
		return newErr("nil source")
	}
	attrs := src.Attributes()
	cnt := -1
	for k, a := range attrs {
		if err := a.check(k); err != nil {
			return err
		}
		switch n := a.Count(); {
		case cnt < 0:
			cnt = n
		case cnt != n:
			return newErr("attribute " + k + " has a mismatched count")
		}
	}
	index := src.Index()
	for _, i := range index {
		if int64(i) >= int64(cnt) {
			return newErr("index out of range")
		}
	}

	var dst map[string]*Attribute
	if len(attrs) > 0 {
		dst = make(map[string]*Attribute, len(attrs))
		for k, a := range attrs {
			dst[k] = a.Clone()
		}
	}
	b.attrs = dst
	b.index = nil
	if index != nil {
		b.index = append(make([]uint32, 0, len(index)), index...)
	}
	if s, ok := src.(*Buffer); ok && s != b {
		b.Name = s.Name
		b.groups = append([]Group(nil), s.groups...)
		b.rng = nil
		if s.rng != nil {
			r := *s.rng
			b.rng = &r
		}
	}
	return nil
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := new(Buffer)
	if err := c.Copy(b); err != nil {
		// b was built through its own methods, which
		// do not validate; fall back to a raw copy.
		c.Name = b.Name
		c.attrs = make(map[string]*Attribute, len(b.attrs))
		for k, a := range b.attrs {
			c.attrs[k] = a.Clone()
		}
		c.index = append([]uint32(nil), b.index...)
		c.groups = append([]Group(nil), b.groups...)
		if b.rng != nil {
			r := *b.rng
			c.rng = &r
		}
	}
	return c
}

// Bounds computes the axis-aligned bounding box of the
// Position attribute.
// It returns false if b has no positions or if they are
// not 3-component vectors.
func (b *Buffer) Bounds() (min, max mgl32.Vec3, ok bool) {
	a := b.attrs[Position]
	if a == nil || a.ItemSize != 3 || len(a.Data) < 3 {
		return
	}
	min = mgl32.Vec3{a.Data[0], a.Data[1], a.Data[2]}
	max = min
	for i := 3; i+2 < len(a.Data); i += 3 {
		for j := 0; j < 3; j++ {
			v := a.Data[i+j]
			if v < min[j] {
				min[j] = v
			}
			if v > max[j] {
				max[j] = v
			}
		}
	}
	return min, max, true
}

// Center returns the center of b's bounding box.
func (b *Buffer) Center() (c mgl32.Vec3, ok bool) {
	min, max, ok := b.Bounds()
	if !ok {
		return
	}
	return min.Add(max).Mul(0.5), true
}
