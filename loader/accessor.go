// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package loader

import (
	"encoding/binary"
	"math"

	"github.com/gviegas/meshgeom/geometry"
	"github.com/gviegas/meshgeom/gltf"
)

// view returns the bytes of the buffer view at index i.
func (l *loader) view(i int64) (b []byte, stride int, err error) {
	v := &l.doc.BufferViews[i]
	buf, err := l.buffer(v.Buffer)
	if err != nil {
		return
	}
	// Bounds were checked by gltf.Check against
	// Buffer.ByteLength, which buf honors.
	return buf[v.ByteOffset : v.ByteOffset+v.ByteLength], int(v.ByteStride), nil
}

// elements returns the raw bytes of cnt elements of
// elemSize bytes each, starting at off within view i.
// Elements are spaced by the view's stride, or tightly
// packed if the view has none or if packed is set.
func (l *loader) elements(i, off int64, cnt, elemSize int, packed bool) (b []byte, stride int, err error) {
	b, stride, err = l.view(i)
	if err != nil {
		return
	}
	if stride == 0 || packed {
		stride = elemSize
	}
	if off < 0 || int64(len(b)) < off {
		return nil, 0, newErr("accessor offset out of bounds")
	}
	b = b[off:]
	if cnt < 1 {
		return b, stride, nil
	}
	if len(b) < elemSize || stride < elemSize || cnt-1 > (len(b)-elemSize)/stride {
		return nil, 0, newErr("accessor data out of bounds")
	}
	return b, stride, nil
}

// component reads a single component of type ct from b.
func component(b []byte, ct int64, norm bool) float32 {
	switch ct {
	case gltf.BYTE:
		v := float32(int8(b[0]))
		if norm {
			return float32(math.Max(float64(v)/127, -1))
		}
		return v
	case gltf.UNSIGNED_BYTE:
		v := float32(b[0])
		if norm {
			return v / 255
		}
		return v
	case gltf.SHORT:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if norm {
			return float32(math.Max(float64(v)/32767, -1))
		}
		return v
	case gltf.UNSIGNED_SHORT:
		v := float32(binary.LittleEndian.Uint16(b))
		if norm {
			return v / 65535
		}
		return v
	case gltf.UNSIGNED_INT:
		v := binary.LittleEndian.Uint32(b)
		if norm {
			return float32(float64(v) / math.MaxUint32)
		}
		return float32(v)
	case gltf.FLOAT:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	default:
		panic("undefined component type")
	}
}

// indexAt reads an unsigned integer of type ct from b.
func indexAt(b []byte, ct int64) uint32 {
	switch ct {
	case gltf.UNSIGNED_BYTE:
		return uint32(b[0])
	case gltf.UNSIGNED_SHORT:
		return uint32(binary.LittleEndian.Uint16(b))
	case gltf.UNSIGNED_INT:
		return binary.LittleEndian.Uint32(b)
	default:
		panic("undefined index component type")
	}
}

// attribute decodes the accessor at index i into a
// geometry.Attribute.
// Decoded attributes are cached, and the same value is
// returned for every use of the accessor.
func (l *loader) attribute(i int64) (*geometry.Attribute, error) {
	if a, ok := l.attrs[i]; ok {
		return a, nil
	}
	acc := &l.doc.Accessors[i]
	n := gltf.TypeSize(acc.Type)
	csz := gltf.ComponentSize(acc.ComponentType)
	cnt := int(acc.Count)

	// An accessor with no buffer view is all zeros,
	// unless sparse values are given.
	var data []float32
	if acc.BufferView != nil {
		b, stride, err := l.elements(*acc.BufferView, acc.ByteOffset, cnt, n*csz, false)
		if err != nil {
			return nil, err
		}
		data = make([]float32, cnt*n)
		for e := 0; e < cnt; e++ {
			src := b[e*stride:]
			for c := 0; c < n; c++ {
				data[e*n+c] = component(src[c*csz:], acc.ComponentType, acc.Normalized)
			}
		}
	}

	if data == nil {
		if cnt > gltf.MaxUnboundCount {
			return nil, newErr("accessor count too large")
		}
		data = make([]float32, cnt*n)
	}

	if s := acc.Sparse; s != nil {
		icsz := gltf.ComponentSize(s.Indices.ComponentType)
		scnt := int(s.Count)
		ib, _, err := l.elements(s.Indices.BufferView, s.Indices.ByteOffset, scnt, icsz, true)
		if err != nil {
			return nil, err
		}
		vb, _, err := l.elements(s.Values.BufferView, s.Values.ByteOffset, scnt, n*csz, true)
		if err != nil {
			return nil, err
		}
		for e := 0; e < scnt; e++ {
			idx := int(indexAt(ib[e*icsz:], s.Indices.ComponentType))
			if idx >= cnt {
				return nil, newErr("sparse index out of bounds")
			}
			src := vb[e*n*csz:]
			for c := 0; c < n; c++ {
				data[idx*n+c] = component(src[c*csz:], acc.ComponentType, acc.Normalized)
			}
		}
	}

	// Normalized integers were already mapped to floats.
	a := &geometry.Attribute{Data: data, ItemSize: n}
	l.attrs[i] = a
	return a, nil
}

// index decodes the accessor at index i as vertex indices.
func (l *loader) index(i int64) ([]uint32, error) {
	acc := &l.doc.Accessors[i]
	if acc.Type != gltf.SCALAR {
		return nil, newErr("index accessor is not SCALAR")
	}
	if acc.BufferView == nil || acc.Sparse != nil {
		return nil, newErr("index accessor must be a plain buffer view")
	}
	csz := gltf.ComponentSize(acc.ComponentType)
	cnt := int(acc.Count)
	b, stride, err := l.elements(*acc.BufferView, acc.ByteOffset, cnt, csz, false)
	if err != nil {
		return nil, err
	}
	idx := make([]uint32, cnt)
	for e := range idx {
		idx[e] = indexAt(b[e*stride:], acc.ComponentType)
	}
	return idx, nil
}
