// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"bytes"
	"encoding/binary"
	"io"
)

// GLB header.
type glbHeader [3]uint32

// Indices in glbHeader.
const (
	headerMagic   = 0
	headerVersion = 1
	headerLength  = 2
)

// GLB chunk.
type glbChunk [2]uint32

// Indices in glbChunk.
const (
	chunkLength = 0
	chunkType   = 1
	// Then payload.
)

const (
	// glbHeader[headerMagic].
	magic = 0x46546c67

	// glbChunk[chunkType].
	typeJSON = 0x4e4f534a
	typeBIN  = 0x004e4942

	headerSize = 12
	chunkSize  = 8
)

// IsGLB returns whether r refers to a binary glTF (version 2).
// It assumes that r was positioned accordingly.
func IsGLB(r io.Reader) bool {
	var h glbHeader
	err := binary.Read(r, binary.LittleEndian, h[:])
	switch {
	case err != nil, h[headerMagic] != magic, h[headerVersion] != 2:
		return false
	default:
		return true
	}
}

// ReadGLB reads a whole GLB blob from r.
// It returns the decoded JSON chunk and the contents of
// the BIN chunk, if present (nil otherwise).
// Chunks of unknown type are skipped.
// Memory grows only with the bytes actually read, so a
// blob whose header overstates its length fails without
// allocating the stated amount.
func ReadGLB(r io.Reader) (gltf *GLTF, bin []byte, err error) {
	var h glbHeader
	if err = binary.Read(r, binary.LittleEndian, h[:]); err != nil {
		return
	}
	if h[headerMagic] != magic || h[headerVersion] != 2 {
		err = newErr("not a GLB blob")
		return
	}
	if h[headerLength] < headerSize+chunkSize {
		err = newErr("invalid GLB length")
		return
	}
	rem := int64(h[headerLength]) - headerSize
	for i := 0; rem > 0; i++ {
		if rem < chunkSize {
			err = newErr("truncated GLB chunk")
			return
		}
		var c glbChunk
		if err = binary.Read(r, binary.LittleEndian, c[:]); err != nil {
			return
		}
		rem -= chunkSize
		n := int64(c[chunkLength])
		if n > rem {
			err = newErr("truncated GLB chunk")
			return
		}
		var data []byte
		if data, err = io.ReadAll(io.LimitReader(r, n)); err != nil {
			return
		}
		if int64(len(data)) != n {
			err = newErr("truncated GLB chunk")
			return
		}
		rem -= n
		switch {
		case i == 0:
			if c[chunkType] != typeJSON || n == 0 {
				err = newErr("invalid GLB chunk")
				return
			}
			if gltf, err = Decode(bytes.NewReader(data)); err != nil {
				return
			}
		case i == 1 && c[chunkType] == typeBIN:
			bin = data
		}
	}
	if gltf == nil {
		err = newErr("missing JSON chunk")
	}
	return
}

// WriteGLB writes gltf and bin into w as a GLB blob.
// bin may be nil, in which case no BIN chunk is written.
func WriteGLB(w io.Writer, gltf *GLTF, bin []byte) error {
	var js bytes.Buffer
	if err := Encode(&js, gltf); err != nil {
		return err
	}
	for js.Len()%4 != 0 {
		js.WriteByte(' ')
	}
	pad := (4 - len(bin)%4) % 4
	n := headerSize + chunkSize + js.Len()
	if bin != nil {
		n += chunkSize + len(bin) + pad
	}
	var out bytes.Buffer
	out.Grow(n)
	binary.Write(&out, binary.LittleEndian, glbHeader{magic, 2, uint32(n)})
	binary.Write(&out, binary.LittleEndian, glbChunk{uint32(js.Len()), typeJSON})
	out.Write(js.Bytes())
	if bin != nil {
		binary.Write(&out, binary.LittleEndian, glbChunk{uint32(len(bin) + pad), typeBIN})
		out.Write(bin)
		out.Write(make([]byte, pad))
	}
	_, err := w.Write(out.Bytes())
	return err
}
