// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package loader loads glTF models into buffer geometries.
package loader

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gviegas/meshgeom/geometry"
	"github.com/gviegas/meshgeom/gltf"
)

const prefix = "loader: "

func newErr(reason string) error { return errors.New(prefix + reason) }

// Model is the geometry of a glTF asset.
type Model struct {
	Meshes []Mesh
	// Scene lists the meshes reachable from the default
	// scene, in depth-first node order.
	// It is empty if the asset has no default scene.
	Scene []int
}

// Mesh is a named collection of primitives.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is a geometry and the way its vertices
// are assembled.
// Mode is kept as stored in the asset since geometries
// are not converted to triangle lists.
type Primitive struct {
	Geometry geometry.Geometry
	Mode     geometry.DrawMode
	// Material is -1 if no material is specified.
	Material int
}

// LoadFile loads the glTF or GLB file at name.
// External buffers are resolved relative to the
// file's directory.
func LoadFile(name string) (*Model, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	defer f.Close()
	return Load(f, os.DirFS(filepath.Dir(name)))
}

// Load loads a glTF asset from r.
// r may contain either JSON or GLB data.
// fsys is used to resolve buffers referenced by relative
// URIs; it can be nil if the asset has none.
func Load(r io.Reader, fsys fs.FS) (*Model, error) {
	br := bufio.NewReader(r)
	var (
		doc *gltf.GLTF
		bin []byte
		err error
	)
	if b, _ := br.Peek(12); gltf.IsGLB(bytes.NewReader(b)) {
		doc, bin, err = gltf.ReadGLB(br)
	} else {
		doc, err = gltf.Decode(br)
	}
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	return FromGLTF(doc, bin, fsys)
}

// FromGLTF creates a Model from an already decoded asset.
// bin is the GLB-stored buffer, if any.
func FromGLTF(doc *gltf.GLTF, bin []byte, fsys fs.FS) (*Model, error) {
	if err := doc.Check(); err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	if x := doc.ExtensionsRequired; len(x) > 0 {
		return nil, newErr("required extension not supported: " + x[0])
	}
	l := &loader{
		doc:   doc,
		bin:   bin,
		fsys:  fsys,
		bufs:  make([][]byte, len(doc.Buffers)),
		attrs: make(map[int64]*geometry.Attribute),
	}
	m := &Model{Meshes: make([]Mesh, len(doc.Meshes))}
	for i := range doc.Meshes {
		mesh := &doc.Meshes[i]
		m.Meshes[i] = Mesh{
			Name:       mesh.Name,
			Primitives: make([]Primitive, len(mesh.Primitives)),
		}
		for j := range mesh.Primitives {
			p, err := l.primitive(&mesh.Primitives[j], mesh.Name)
			if err != nil {
				return nil, fmt.Errorf("%w (mesh %d, primitive %d)", err, i, j)
			}
			m.Meshes[i].Primitives[j] = p
		}
	}
	m.Scene = sceneMeshes(doc)
	return m, nil
}

// sceneMeshes walks the default scene's node hierarchy.
func sceneMeshes(doc *gltf.GLTF) []int {
	if doc.Scene == nil {
		return nil
	}
	var meshes []int
	seen := make([]bool, len(doc.Nodes))
	var walk func(n int64)
	walk = func(n int64) {
		if seen[n] {
			return
		}
		seen[n] = true
		node := &doc.Nodes[n]
		if node.Mesh != nil {
			meshes = append(meshes, int(*node.Mesh))
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	for _, n := range doc.Scenes[*doc.Scene].Nodes {
		walk(n)
	}
	return meshes
}

// loader holds the state of a single FromGLTF call.
type loader struct {
	doc  *gltf.GLTF
	bin  []byte
	fsys fs.FS
	bufs [][]byte
	// Decoded vertex accessors.
	// Primitives often share them.
	attrs map[int64]*geometry.Attribute
}

// semantics maps glTF attribute semantics to
// geometry attribute names.
var semantics = map[string]string{
	"POSITION":   geometry.Position,
	"NORMAL":     geometry.Normal,
	"TANGENT":    geometry.Tangent,
	"TEXCOORD_0": geometry.UV,
	"TEXCOORD_1": geometry.UV1,
	"COLOR_0":    geometry.Color,
	"JOINTS_0":   geometry.SkinIndex,
	"WEIGHTS_0":  geometry.SkinWeight,
}

// attrName returns the geometry attribute name for
// the glTF semantic s.
func attrName(s string) string {
	if n, ok := semantics[s]; ok {
		return n
	}
	return strings.ToLower(s)
}

// source is the raw vertex data of a primitive.
// It implements geometry.Source.
type source struct {
	geometry.Attrs
	index []uint32
}

func (s source) Index() []uint32 { return s.index }

// primitive decodes p and normalizes its geometry.
func (l *loader) primitive(p *gltf.Primitive, name string) (Primitive, error) {
	src := source{Attrs: make(geometry.Attrs, len(p.Attributes))}
	for s, acc := range p.Attributes {
		a, err := l.attribute(acc)
		if err != nil {
			return Primitive{}, err
		}
		src.Attrs[attrName(s)] = a
	}
	if p.Indices != nil {
		idx, err := l.index(*p.Indices)
		if err != nil {
			return Primitive{}, err
		}
		src.index = idx
	}
	mode := geometry.DrawMode(p.DrawMode())
	g, err := geometry.Normalize(src, mode)
	if err != nil {
		return Primitive{}, err
	}
	if b, ok := g.(*geometry.Buffer); ok {
		b.Name = name
	}
	mat := -1
	if p.Material != nil {
		mat = int(*p.Material)
	}
	return Primitive{Geometry: g, Mode: mode, Material: mat}, nil
}

// buffer returns the contents of the buffer at index i.
func (l *loader) buffer(i int64) ([]byte, error) {
	if b := l.bufs[i]; b != nil {
		return b, nil
	}
	desc := &l.doc.Buffers[i]
	var (
		b   []byte
		err error
	)
	switch uri := desc.URI; {
	case uri == "":
		if i != 0 || l.bin == nil {
			return nil, newErr("buffer has no data")
		}
		b = l.bin
	case strings.HasPrefix(uri, "data:"):
		b, err = decodeDataURI(uri)
	default:
		b, err = l.readFile(uri)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(b)) < desc.ByteLength {
		return nil, newErr("buffer is shorter than its byteLength")
	}
	b = b[:desc.ByteLength]
	l.bufs[i] = b
	return b, nil
}

// decodeDataURI decodes a base64 data URI.
func decodeDataURI(uri string) ([]byte, error) {
	i := strings.IndexByte(uri, ',')
	if i < 0 || !strings.HasSuffix(uri[:i], ";base64") {
		return nil, newErr("unsupported data URI")
	}
	b, err := base64.StdEncoding.DecodeString(uri[i+1:])
	if err != nil {
		return nil, fmt.Errorf(prefix+"data URI: %w", err)
	}
	return b, nil
}

// readFile reads a buffer referenced by a relative URI.
func (l *loader) readFile(uri string) ([]byte, error) {
	if l.fsys == nil {
		return nil, newErr("external buffer with no file system: " + uri)
	}
	name, err := url.PathUnescape(uri)
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		return nil, newErr("invalid buffer URI: " + uri)
	}
	b, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	return b, nil
}
