// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/meshgeom/geometry"
	"github.com/gviegas/meshgeom/gltf"
)

var quadPositions = []float32{
	0, 0, 0,
	1, 0, 0,
	0, 1, 0,
	1, 1, 0,
}

// quadData returns the binary data of a quad drawn as a
// triangle strip: 4 float32x3 positions (48 bytes),
// 4 unorm8x4 colors (16 bytes), 4 uint16 indices (8 bytes),
// one uint8 sparse index (padded to 4 bytes) and one
// float32x3 sparse value (12 bytes).
func quadData() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, quadPositions)
	for i := 0; i < 4; i++ {
		buf.Write([]byte{255, 0, 0, 255})
	}
	binary.Write(&buf, binary.LittleEndian, []uint16{0, 1, 2, 3})
	buf.Write([]byte{2, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, []float32{0, 2, 0})
	return buf.Bytes()
}

func i64(x int64) *int64 { return &x }

// quadGLTF returns a glTF document describing quadData,
// whose single buffer has the given uri.
func quadGLTF(uri string) *gltf.GLTF {
	doc := &gltf.GLTF{
		Asset: gltf.Asset{Version: "2.0"},
		Scene: i64(0),
		Buffers: []gltf.Buffer{
			{URI: uri, ByteLength: 88},
		},
		BufferViews: []gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 48},
			{Buffer: 0, ByteOffset: 48, ByteLength: 16},
			{Buffer: 0, ByteOffset: 64, ByteLength: 8},
			{Buffer: 0, ByteOffset: 72, ByteLength: 4},
			{Buffer: 0, ByteOffset: 76, ByteLength: 12},
		},
		Accessors: []gltf.Accessor{
			{BufferView: i64(0), ComponentType: gltf.FLOAT, Count: 4, Type: gltf.VEC3},
			{BufferView: i64(1), ComponentType: gltf.UNSIGNED_BYTE, Normalized: true, Count: 4, Type: gltf.VEC4},
			{BufferView: i64(2), ComponentType: gltf.UNSIGNED_SHORT, Count: 4, Type: gltf.SCALAR},
			{ComponentType: gltf.FLOAT, Count: 4, Type: gltf.VEC3},
			{BufferView: i64(0), ComponentType: gltf.FLOAT, Count: 4, Type: gltf.VEC3, Sparse: &gltf.Sparse{Count: 1}},
		},
		Meshes: []gltf.Mesh{
			{
				Name: "quad",
				Primitives: []gltf.Primitive{
					{
						Attributes: map[string]int64{"POSITION": 0, "COLOR_0": 1, "_CUSTOM": 3},
						Indices:    i64(2),
						Mode:       i64(gltf.TRIANGLE_STRIP),
						Material:   i64(0),
					},
					{
						Attributes: map[string]int64{"POSITION": 4},
					},
				},
			},
		},
		Nodes: []gltf.Node{
			{Children: []int64{1}},
			{Mesh: i64(0)},
		},
		Scenes: []gltf.Scene{{Nodes: []int64{0}}},
	}
	s := doc.Accessors[4].Sparse
	s.Indices.BufferView = 3
	s.Indices.ComponentType = gltf.UNSIGNED_BYTE
	s.Values.BufferView = 4
	return doc
}

func checkQuad(t *testing.T, m *Model) {
	t.Helper()
	if x := len(m.Meshes); x != 1 {
		t.Fatalf("len(Model.Meshes):\nhave %d\nwant 1", x)
	}
	mesh := m.Meshes[0]
	if mesh.Name != "quad" || len(mesh.Primitives) != 2 {
		t.Fatalf("Model.Meshes[0]:\nhave %s, %d primitives\nwant quad, 2 primitives", mesh.Name, len(mesh.Primitives))
	}
	if !reflect.DeepEqual(m.Scene, []int{0}) {
		t.Fatalf("Model.Scene:\nhave %v\nwant [0]", m.Scene)
	}

	p := mesh.Primitives[0]
	if p.Mode != geometry.TriangleStrip {
		t.Fatalf("Primitive.Mode:\nhave %v\nwant %v", p.Mode, geometry.TriangleStrip)
	}
	if p.Material != 0 {
		t.Fatalf("Primitive.Material:\nhave %d\nwant 0", p.Material)
	}
	b, ok := p.Geometry.(*geometry.Buffer)
	if !ok {
		t.Fatalf("Primitive.Geometry:\nhave %T\nwant *geometry.Buffer", p.Geometry)
	}
	if b.Name != "quad" {
		t.Fatalf("Buffer.Name:\nhave %s\nwant quad", b.Name)
	}
	if x := b.Attribute(geometry.Position).Data; !reflect.DeepEqual(x, quadPositions) {
		t.Fatalf("Buffer.Attribute(Position):\nhave %v\nwant %v", x, quadPositions)
	}
	col := b.Attribute(geometry.Color)
	// Normalized integers are converted on load, so the
	// flag must not ask consumers to convert them again.
	if col == nil || col.ItemSize != 4 || col.Normalized {
		t.Fatalf("Buffer.Attribute(Color):\nhave %+v\nwant VEC4 of converted floats", col)
	}
	if x := col.Data[:4]; !reflect.DeepEqual(x, []float32{1, 0, 0, 1}) {
		t.Fatalf("Buffer.Attribute(Color).Data[:4]:\nhave %v\nwant [1 0 0 1]", x)
	}
	if x := b.Attribute("_custom"); x == nil || !reflect.DeepEqual(x.Data, make([]float32, 12)) {
		t.Fatalf("Buffer.Attribute(_custom):\nhave %v\nwant 12 zeros", x)
	}
	if x := b.Index(); !reflect.DeepEqual(x, []uint32{0, 1, 2, 3}) {
		t.Fatalf("Buffer.Index:\nhave %v\nwant [0 1 2 3]", x)
	}
	min, max, _ := b.Bounds()
	if min != (mgl32.Vec3{0, 0, 0}) || max != (mgl32.Vec3{1, 1, 0}) {
		t.Fatalf("Buffer.Bounds:\nhave %v %v\nwant [0 0 0] [1 1 0]", min, max)
	}

	p = mesh.Primitives[1]
	if p.Mode != geometry.Triangles || p.Material != -1 {
		t.Fatalf("Primitive:\nhave %v, %d\nwant Triangles, -1", p.Mode, p.Material)
	}
	want := append([]float32(nil), quadPositions...)
	want[7] = 2
	if x := p.Geometry.Attribute(geometry.Position).Data; !reflect.DeepEqual(x, want) {
		t.Fatalf("sparse Position:\nhave %v\nwant %v", x, want)
	}
	if p.Geometry.Index() != nil {
		t.Fatalf("Primitive.Geometry.Index:\nhave %v\nwant nil", p.Geometry.Index())
	}
	// Geometries own their attribute data.
	if &p.Geometry.Attribute(geometry.Position).Data[0] == &b.Attribute(geometry.Position).Data[0] {
		t.Fatal("Primitive geometries share attribute data")
	}
}

func TestLoadDataURI(t *testing.T) {
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(quadData())
	var buf bytes.Buffer
	if err := gltf.Encode(&buf, quadGLTF(uri)); err != nil {
		t.Fatal(err)
	}
	m, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load:\nhave %v\nwant nil", err)
	}
	checkQuad(t, m)
}

func TestLoadGLB(t *testing.T) {
	var buf bytes.Buffer
	if err := gltf.WriteGLB(&buf, quadGLTF(""), quadData()); err != nil {
		t.Fatal(err)
	}
	m, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load:\nhave %v\nwant nil", err)
	}
	checkQuad(t, m)
}

func TestLoadExternal(t *testing.T) {
	var buf bytes.Buffer
	if err := gltf.Encode(&buf, quadGLTF("bin/quad%20data.bin")); err != nil {
		t.Fatal(err)
	}
	fsys := fstest.MapFS{"bin/quad data.bin": {Data: quadData()}}
	m, err := Load(bytes.NewReader(buf.Bytes()), fsys)
	if err != nil {
		t.Fatalf("Load:\nhave %v\nwant nil", err)
	}
	checkQuad(t, m)

	if _, err = Load(bytes.NewReader(buf.Bytes()), nil); err == nil {
		t.Fatal("Load: nil fs.FS\nhave nil\nwant error")
	}
	if _, err = Load(bytes.NewReader(buf.Bytes()), fstest.MapFS{}); err == nil {
		t.Fatal("Load: missing file\nhave nil\nwant error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "quad.bin"), quadData(), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := gltf.Encode(&buf, quadGLTF("quad.bin")); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(dir, "quad.gltf")
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(name)
	if err != nil {
		t.Fatalf("LoadFile:\nhave %v\nwant nil", err)
	}
	checkQuad(t, m)

	if _, err = LoadFile(filepath.Join(dir, "none.gltf")); err == nil {
		t.Fatal("LoadFile: missing file\nhave nil\nwant error")
	}
}

func TestLoadErr(t *testing.T) {
	data := quadData()
	for _, c := range [...]struct {
		edit   func(*gltf.GLTF)
		bin    []byte
		reason string
	}{
		{func(*gltf.GLTF) {}, nil, "buffer has no data"},
		{func(*gltf.GLTF) {}, data[:40], "shorter than its byteLength"},
		{func(f *gltf.GLTF) { f.Buffers[0].URI = "data:text/plain,abc" }, nil, "unsupported data URI"},
		{func(f *gltf.GLTF) { f.Buffers[0].URI = "data:;base64,!!" }, nil, "data URI"},
		{func(f *gltf.GLTF) { f.Buffers[0].URI = "../up.bin" }, nil, "external buffer"},
		{func(f *gltf.GLTF) { f.Accessors[0].Count = 5 }, data, "out of bounds"},
		{func(f *gltf.GLTF) { f.Accessors[2].Type = gltf.VEC2; f.Accessors[2].Count = 2 }, data, "not SCALAR"},
		{func(f *gltf.GLTF) { f.Accessors[2].BufferView = nil }, data, "plain buffer view"},
		{func(f *gltf.GLTF) { f.Accessors[2].Count = 3; data[68] = 9 }, data, "geometry: index out of range"},
		{func(f *gltf.GLTF) { f.ExtensionsRequired = []string{"KHR_draco_mesh_compression"} }, data, "required extension"},
		{func(f *gltf.GLTF) { f.Asset.Version = "" }, data, "gltf: "},
		{func(f *gltf.GLTF) { f.Accessors[0].Count = 1 << 62 }, data, "out of bounds"},
		{func(f *gltf.GLTF) { f.Accessors[3].Count = 1 << 62 }, data, "no BufferView"},
		{func(f *gltf.GLTF) { f.BufferViews[4].ByteStride = 4 }, data, "Sparse.Values.BufferView stride"},
	} {
		doc := quadGLTF("")
		c.edit(doc)
		_, err := FromGLTF(doc, c.bin, nil)
		if err == nil {
			t.Fatalf("FromGLTF: %s\nhave nil\nwant error", c.reason)
		}
		if s := err.Error(); !strings.Contains(s, c.reason) {
			t.Fatalf("FromGLTF:\nhave %q\nwant %q", s, c.reason)
		}
	}
}

func TestLoadSparseOutOfBounds(t *testing.T) {
	data := quadData()
	data[72] = 4
	_, err := FromGLTF(quadGLTF(""), data, nil)
	if err == nil || !strings.Contains(err.Error(), "sparse index out of bounds") {
		t.Fatalf("FromGLTF:\nhave %v\nwant sparse index out of bounds", err)
	}
}

func TestElements(t *testing.T) {
	l := &loader{
		doc:  quadGLTF(""),
		bin:  quadData(),
		bufs: make([][]byte, 1),
	}
	for _, c := range [...]struct {
		view, off int64
		cnt, size int
		packed    bool
		ok        bool
	}{
		{0, 0, 4, 12, false, true},
		{0, 0, 5, 12, false, false},
		{0, 0, 1 << 30, 12, false, false},
		{0, 36, 1, 12, false, true},
		{0, 40, 1, 12, false, false},
		{0, 49, 1, 12, false, false},
		{4, 0, 1, 12, true, true},
		{4, 0, 2, 12, true, false},
	} {
		_, _, err := l.elements(c.view, c.off, c.cnt, c.size, c.packed)
		if (err == nil) != c.ok {
			t.Fatalf("loader.elements(%d, %d, %d, %d, %t):\nhave %v\nwant ok=%t", c.view, c.off, c.cnt, c.size, c.packed, err, c.ok)
		}
	}

	// Sparse views are read tightly packed even if a
	// (malformed) stride is present.
	l.doc.BufferViews[4].ByteStride = 4
	if _, stride, err := l.elements(4, 0, 1, 12, true); err != nil || stride != 12 {
		t.Fatalf("loader.elements: packed\nhave %d, %v\nwant 12, nil", stride, err)
	}
}

func TestComponent(t *testing.T) {
	for _, c := range [...]struct {
		b    []byte
		ct   int64
		norm bool
		want float32
	}{
		{[]byte{0x80}, gltf.BYTE, true, -1},
		{[]byte{0x7f}, gltf.BYTE, true, 1},
		{[]byte{0xff}, gltf.BYTE, false, -1},
		{[]byte{0xff}, gltf.UNSIGNED_BYTE, true, 1},
		{[]byte{0x00, 0x80}, gltf.SHORT, true, -1},
		{[]byte{0xff, 0x7f}, gltf.SHORT, true, 1},
		{[]byte{0xff, 0xff}, gltf.UNSIGNED_SHORT, true, 1},
		{[]byte{0x10, 0x00}, gltf.UNSIGNED_SHORT, false, 16},
		{[]byte{0x01, 0x00, 0x00, 0x00}, gltf.UNSIGNED_INT, false, 1},
		{[]byte{0x00, 0x00, 0x80, 0x3f}, gltf.FLOAT, false, 1},
	} {
		if x := component(c.b, c.ct, c.norm); x != c.want {
			t.Fatalf("component(%v, %d, %t):\nhave %v\nwant %v", c.b, c.ct, c.norm, x, c.want)
		}
	}
}

func TestStride(t *testing.T) {
	// Interleaved position (VEC3) and a padding float.
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		binary.Write(&buf, binary.LittleEndian, []float32{float32(i), 0, 0, -1})
	}
	doc := &gltf.GLTF{
		Asset:       gltf.Asset{Version: "2.0"},
		Buffers:     []gltf.Buffer{{ByteLength: 48}},
		BufferViews: []gltf.BufferView{{ByteLength: 48, ByteStride: 16}},
		Accessors:   []gltf.Accessor{{BufferView: i64(0), ComponentType: gltf.FLOAT, Count: 3, Type: gltf.VEC3}},
		Meshes:      []gltf.Mesh{{Primitives: []gltf.Primitive{{Attributes: map[string]int64{"POSITION": 0}}}}},
	}
	m, err := FromGLTF(doc, buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("FromGLTF:\nhave %v\nwant nil", err)
	}
	want := []float32{0, 0, 0, 1, 0, 0, 2, 0, 0}
	if x := m.Meshes[0].Primitives[0].Geometry.Attribute(geometry.Position).Data; !reflect.DeepEqual(x, want) {
		t.Fatalf("strided Position:\nhave %v\nwant %v", x, want)
	}
	if m.Scene != nil {
		t.Fatalf("Model.Scene:\nhave %v\nwant nil", m.Scene)
	}
}
