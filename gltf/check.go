// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"errors"
)

func newErr(reason string) error {
	return errors.New("gltf: " + reason)
}

// validIndex reports whether idx can index a slice of length n.
func validIndex(idx int64, n int) bool { return idx >= 0 && idx < int64(n) }

// Check checks that f is valid glTF.
// Only properties that this package decodes are checked.
func (f *GLTF) Check() error {
	if f.Asset.Version == "" {
		return newErr("missing GLTF.Asset.Version")
	}
	if s := f.Scene; s != nil && !validIndex(*s, len(f.Scenes)) {
		return newErr("invalid GLTF.Scene index")
	}
	for i := range f.Buffers {
		if f.Buffers[i].ByteLength < 1 {
			return newErr("invalid Buffer.ByteLength value")
		}
	}
	for i := range f.BufferViews {
		if err := f.BufferViews[i].Check(f); err != nil {
			return err
		}
	}
	for i := range f.Accessors {
		if err := f.Accessors[i].Check(f); err != nil {
			return err
		}
	}
	for i := range f.Meshes {
		if err := f.Meshes[i].Check(f); err != nil {
			return err
		}
	}
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if m := n.Mesh; m != nil && !validIndex(*m, len(f.Meshes)) {
			return newErr("invalid Node.Mesh index")
		}
		for _, c := range n.Children {
			if !validIndex(c, len(f.Nodes)) {
				return newErr("invalid Node.Children index")
			}
		}
	}
	for i := range f.Scenes {
		for _, n := range f.Scenes[i].Nodes {
			if !validIndex(n, len(f.Nodes)) {
				return newErr("invalid Scene.Nodes index")
			}
		}
	}
	return nil
}

// Check checks that v is valid glTF.bufferViews' element.
func (v *BufferView) Check(gltf *GLTF) error {
	if !validIndex(v.Buffer, len(gltf.Buffers)) {
		return newErr("invalid BufferView.Buffer index")
	}
	if v.ByteOffset < 0 {
		return newErr("invalid BufferView.ByteOffset value")
	}
	if v.ByteLength < 1 || v.ByteOffset+v.ByteLength > gltf.Buffers[v.Buffer].ByteLength {
		return newErr("invalid BufferView.ByteLength value")
	}
	if s := v.ByteStride; s != 0 && (s < 4 || s > 252 || s%4 != 0) {
		return newErr("invalid BufferView.ByteStride value")
	}
	return nil
}

// MaxUnboundCount is the largest Count allowed for an
// accessor that has no buffer view.
const MaxUnboundCount = 1 << 24

// fits reports whether cnt elements of elemSize bytes,
// spaced stride bytes apart starting at off, lie
// within v.
func (v *BufferView) fits(off, cnt, elemSize, stride int64) bool {
	if off < 0 || off > v.ByteLength || cnt < 1 || stride < elemSize {
		return false
	}
	rem := v.ByteLength - off
	if rem < elemSize {
		return false
	}
	return cnt-1 <= (rem-elemSize)/stride
}

// Check checks that a is valid glTF.accessors' element.
func (a *Accessor) Check(gltf *GLTF) error {
	if a.BufferView != nil && !validIndex(*a.BufferView, len(gltf.BufferViews)) {
		return newErr("invalid Accessor.BufferView index")
	}
	if a.ByteOffset < 0 {
		return newErr("invalid Accessor.BufferOffset value")
	}
	if ComponentSize(a.ComponentType) == 0 {
		return newErr("invalid Accessor.ComponentType value")
	}
	if a.Count < 1 {
		return newErr("invalid Accessor.Count value")
	}
	if TypeSize(a.Type) == 0 {
		return newErr("invalid Accessor.Type value")
	}
	// TODO: Check Accessor.Max/Min.

	elemSize := int64(TypeSize(a.Type) * ComponentSize(a.ComponentType))
	if a.BufferView != nil {
		v := &gltf.BufferViews[*a.BufferView]
		stride := v.ByteStride
		if stride == 0 {
			stride = elemSize
		}
		if !v.fits(a.ByteOffset, a.Count, elemSize, stride) {
			return newErr("Accessor data out of bounds of its BufferView")
		}
	} else if a.Count > MaxUnboundCount {
		return newErr("invalid Accessor.Count value for no BufferView")
	}

	if s := a.Sparse; s != nil {
		if s.Count < 1 || s.Count > a.Count {
			return newErr("invalid Accessor.Sparse.Count value")
		}

		if !validIndex(s.Indices.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid Accessor.Sparse.Indices.BufferView index")
		}
		if s.Indices.ByteOffset < 0 {
			return newErr("invalid Accessor.Sparse.Indices.ByteOffset value")
		}
		switch s.Indices.ComponentType {
		case UNSIGNED_BYTE, UNSIGNED_SHORT, UNSIGNED_INT:
		default:
			return newErr("invalid Accessor.Sparse.Indices.ComponentType value")
		}
		iv := &gltf.BufferViews[s.Indices.BufferView]
		isz := int64(ComponentSize(s.Indices.ComponentType))
		if iv.ByteStride != 0 {
			return newErr("invalid Accessor.Sparse.Indices.BufferView stride")
		}
		if !iv.fits(s.Indices.ByteOffset, s.Count, isz, isz) {
			return newErr("Accessor.Sparse.Indices out of bounds of its BufferView")
		}

		if !validIndex(s.Values.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid Accessor.Sparse.Values.BufferView index")
		}
		if s.Values.ByteOffset < 0 {
			return newErr("invalid Accessor.Sparse.Values.ByteOffset value")
		}
		vv := &gltf.BufferViews[s.Values.BufferView]
		if vv.ByteStride != 0 {
			return newErr("invalid Accessor.Sparse.Values.BufferView stride")
		}
		if !vv.fits(s.Values.ByteOffset, s.Count, elemSize, elemSize) {
			return newErr("Accessor.Sparse.Values out of bounds of its BufferView")
		}
	}
	return nil
}

// Check checks that m is valid glTF.meshes' element.
func (m *Mesh) Check(gltf *GLTF) error {
	if len(m.Primitives) == 0 {
		return newErr("Mesh.Primitives is empty")
	}
	for i := range m.Primitives {
		p := &m.Primitives[i]
		if len(p.Attributes) == 0 {
			return newErr("Primitive.Attributes is empty")
		}
		for _, a := range p.Attributes {
			if !validIndex(a, len(gltf.Accessors)) {
				return newErr("invalid Primitive.Attributes index")
			}
		}
		if x := p.Indices; x != nil {
			if !validIndex(*x, len(gltf.Accessors)) {
				return newErr("invalid Primitive.Indices index")
			}
			switch gltf.Accessors[*x].ComponentType {
			case UNSIGNED_BYTE, UNSIGNED_SHORT, UNSIGNED_INT:
			default:
				return newErr("invalid Primitive.Indices component type")
			}
		}
		if x := p.DrawMode(); x < POINTS || x > TRIANGLE_FAN {
			return newErr("invalid Primitive.Mode value")
		}
	}
	return nil
}
