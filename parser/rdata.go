package parser

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// R serialization type codes (SEXPTYPE plus the pseudo types used by the
// serializer).
const (
	symSxp     = 1
	listSxp    = 2
	closSxp    = 3
	envSxp     = 4
	promSxp    = 5
	langSxp    = 6
	specialSxp = 7
	builtinSxp = 8
	charSxp    = 9
	lglSxp     = 10
	intSxp     = 13
	realSxp    = 14
	cplxSxp    = 15
	strSxp     = 16
	dotSxp     = 17
	vecSxp     = 19
	exprSxp    = 20
	bcodeSxp   = 21
	extptrSxp  = 22
	weakrefSxp = 23
	rawSxp     = 24
	s4Sxp      = 25

	altrepSxp        = 238
	attrListSxp      = 239
	attrLangSxp      = 240
	baseEnvSxp       = 241
	emptyEnvSxp      = 242
	genericRefSxp    = 245
	classRefSxp      = 246
	persistSxp       = 247
	packageSxp       = 248
	namespaceSxp     = 249
	baseNamespaceSxp = 250
	missingArgSxp    = 251
	unboundValueSxp  = 252
	globalEnvSxp     = 253
	nilValueSxp      = 254
	refSxp           = 255
)

const (
	hasAttrFlag = 1 << 9
	hasTagFlag  = 1 << 10

	naInteger = math.MinInt32
	maxLength = 1 << 31

	// readChunk bounds each allocation made ahead of the bytes it holds.
	readChunk = 1 << 20
	// maxCompact caps the expansion of compact sequences, whose length
	// costs nothing in the stream.
	maxCompact = 1 << 26
)

// rObject is a decoded R value. Only the fields relevant to its kind are set.
type rObject struct {
	kind  uint8
	ints  []int32
	reals []float64
	strs  []string
	raw   []byte
	elems []*rObject
	tags  []string
	attr  *rObject
	na    bool
}

func (o *rObject) name() string {
	if o == nil || len(o.strs) == 0 {
		return ""
	}
	return o.strs[0]
}

func (o *rObject) isNil() bool { return o == nil || o.kind == nilValueSxp }

// attribute returns the attribute value stored under tag, or nil.
func (o *rObject) attribute(tag string) *rObject {
	if o.attr.isNil() {
		return nil
	}
	for i, t := range o.attr.tags {
		if t == tag {
			return o.attr.elems[i]
		}
	}
	return nil
}

func (o *rObject) numbers() []float64 {
	switch o.kind {
	case realSxp:
		return o.reals
	case intSxp, lglSxp:
		out := make([]float64, len(o.ints))
		for i, v := range o.ints {
			if v == naInteger {
				out[i] = math.NaN()
				continue
			}
			out[i] = float64(v)
		}
		return out
	}
	return nil
}

func (o *rObject) typeName() string {
	switch o.kind {
	case nilValueSxp:
		return "NULL"
	case symSxp:
		return "symbol"
	case listSxp, attrListSxp:
		return "pairlist"
	case closSxp:
		return "closure"
	case envSxp, globalEnvSxp, baseEnvSxp, emptyEnvSxp:
		return "environment"
	case langSxp, attrLangSxp:
		return "language"
	case charSxp:
		return "char"
	case lglSxp:
		return "logical"
	case intSxp:
		return "integer"
	case realSxp:
		return "double"
	case cplxSxp:
		return "complex"
	case strSxp:
		return "character"
	case vecSxp:
		return "list"
	case exprSxp:
		return "expression"
	case rawSxp:
		return "raw"
	case s4Sxp:
		return "S4"
	}
	return "sexp" + strconv.Itoa(int(o.kind))
}

func (o *rObject) dims() []int {
	dim := o.attribute("dim")
	if dim == nil {
		return nil
	}
	nums := dim.numbers()
	shape := make([]int, len(nums))
	for i, v := range nums {
		shape[i] = int(v)
	}
	return shape
}

// toArray converts a numeric R array (column-major, with a dim attribute)
// to a row-major Array. R's NA becomes NaN.
func (o *rObject) toArray() (*Array, error) {
	switch o.kind {
	case realSxp, intSxp, lglSxp:
	default:
		return nil, errors.Wrapf(ErrNotArray, "R %s", o.typeName())
	}
	shape := o.dims()
	if len(shape) == 0 {
		return nil, errors.Wrap(ErrNotArray, "no dim attribute")
	}
	return fromColumnMajor(shape, o.numbers())
}

// rFile is the decoded content of an RData or RDS file.
type rFile struct {
	names   []string
	objects []*rObject
}

func (f *rFile) lookup(name string) (*rObject, string, bool) {
	for i, n := range f.names {
		if name == "" && f.objects[i].dims() == nil {
			continue
		}
		if name == "" || n == name {
			return f.objects[i], n, true
		}
	}
	return nil, "", false
}

// RData loads arrays from files written by R's save() or saveRDS().
type RData struct{}

func (RData) Load(ctx context.Context, key Key) (*Array, error) {
	rf, err := readRFile(ctx, key.Path)
	if err != nil {
		return nil, err
	}
	obj, name, ok := rf.lookup(key.Object)
	if !ok {
		if key.Object == "" {
			return nil, errors.Wrapf(ErrObjectNotFound, "no array in %s", key.Path)
		}
		return nil, errors.Wrapf(ErrObjectNotFound, "%q in %s", key.Object, key.Path)
	}
	a, err := obj.toArray()
	if err != nil {
		return nil, errors.Wrapf(err, "object %q", name)
	}
	return a, nil
}

func (RData) Describe(ctx context.Context, path string) ([]ObjectInfo, error) {
	rf, err := readRFile(ctx, path)
	if err != nil {
		return nil, err
	}
	infos := make([]ObjectInfo, len(rf.objects))
	for i, obj := range rf.objects {
		infos[i] = ObjectInfo{Name: rf.names[i], Type: obj.typeName(), Shape: obj.dims()}
	}
	return infos, nil
}

func readRFile(ctx context.Context, path string) (*rFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rf, err := decodeRData(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return rf, nil
}

// decodeRData reads an optionally compressed save() or saveRDS() stream.
func decodeRData(r io.Reader) (*rFile, error) {
	br, err := decompress(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	saved := false
	magic, err := br.Peek(5)
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	switch string(magic) {
	case "RDX2\n", "RDX3\n", "RDB2\n", "RDB3\n":
		saved = true
		br.Discard(5)
	case "RDA2\n", "RDA3\n":
		return nil, errors.Wrap(ErrUnsupported, "ascii RData")
	}

	d := &rReader{r: br}
	if err := d.header(); err != nil {
		return nil, err
	}
	top, err := d.item()
	if err != nil {
		return nil, err
	}

	if !saved {
		return &rFile{names: []string{""}, objects: []*rObject{top}}, nil
	}
	if top.kind != listSxp {
		return nil, errors.Errorf("saved objects are a %s, want pairlist", top.typeName())
	}
	return &rFile{names: top.tags, objects: top.elems}, nil
}

func decompress(br *bufio.Reader) (*bufio.Reader, error) {
	head, _ := br.Peek(6)
	switch {
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return bufio.NewReader(zr), nil
	case bytes.HasPrefix(head, []byte("BZh")):
		return bufio.NewReader(bzip2.NewReader(br)), nil
	case bytes.Equal(head, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		return bufio.NewReader(xr), nil
	}
	return br, nil
}

type rReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	refs  []*rObject
	buf   [8]byte
}

func (d *rReader) header() error {
	var format [2]byte
	if _, err := io.ReadFull(d.r, format[:]); err != nil {
		return errors.Wrap(err, "read format")
	}
	switch string(format[:]) {
	case "X\n":
		d.order = binary.BigEndian
	case "B\n":
		d.order = binary.LittleEndian
	case "A\n":
		return errors.Wrap(ErrUnsupported, "ascii serialization")
	default:
		return errors.Wrapf(ErrUnsupported, "serialization format %q", format[:])
	}

	version, err := d.int32()
	if err != nil {
		return err
	}
	// writer and minimal reader versions
	if _, err := d.int32(); err != nil {
		return err
	}
	if _, err := d.int32(); err != nil {
		return err
	}
	switch version {
	case 2:
	case 3:
		n, err := d.int32()
		if err != nil {
			return err
		}
		if n < 0 || n > 64 {
			return errors.Errorf("native encoding length %d", n)
		}
		if _, err := d.r.Discard(int(n)); err != nil {
			return errors.Wrap(err, "read native encoding")
		}
	default:
		return errors.Wrapf(ErrUnsupported, "serialization version %d", version)
	}
	return nil
}

func (d *rReader) int32() (int32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, errors.Wrap(err, "read integer")
	}
	return int32(d.order.Uint32(d.buf[:4])), nil
}

func (d *rReader) length() (int, error) {
	n, err := d.int32()
	if err != nil {
		return 0, err
	}
	if n >= 0 {
		return int(n), nil
	}
	if n != -1 {
		return 0, errors.Wrapf(ErrCorrupt, "negative length %d", n)
	}
	hi, err := d.int32()
	if err != nil {
		return 0, err
	}
	lo, err := d.int32()
	if err != nil {
		return 0, err
	}
	long := int64(uint32(hi))<<32 | int64(uint32(lo))
	if long > maxLength {
		return 0, errors.Wrapf(ErrCorrupt, "vector length %d too large", long)
	}
	return int(long), nil
}

// bytes reads n bytes in chunks, so a corrupt length fails on the short read
// instead of allocating the whole claimed size up front.
func (d *rReader) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrCorrupt, "byte count %d", n)
	}
	b := make([]byte, 0, min(n, readChunk))
	for len(b) < n {
		k := min(n-len(b), readChunk)
		start := len(b)
		b = append(b, make([]byte, k)...)
		if _, err := io.ReadFull(d.r, b[start:]); err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "read %d bytes: %v", n, err)
		}
	}
	return b, nil
}

func (d *rReader) ints(n int) ([]int32, error) {
	b, err := d.bytes(4 * n)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(d.order.Uint32(b[4*i:]))
	}
	return out, nil
}

func (d *rReader) reals(n int) ([]float64, error) {
	b, err := d.bytes(8 * n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(b[8*i:]))
	}
	return out, nil
}

func (d *rReader) item() (*rObject, error) {
	flags, err := d.int32()
	if err != nil {
		return nil, err
	}
	return d.itemWithFlags(uint32(flags))
}

func (d *rReader) itemWithFlags(flags uint32) (*rObject, error) {
	kind := uint8(flags & 0xff)
	switch kind {
	case nilValueSxp, emptyEnvSxp, baseEnvSxp, globalEnvSxp, unboundValueSxp, missingArgSxp, baseNamespaceSxp:
		return &rObject{kind: kind}, nil
	case refSxp:
		idx := int(flags >> 8)
		if idx == 0 {
			n, err := d.int32()
			if err != nil {
				return nil, err
			}
			idx = int(n)
		}
		if idx < 1 || idx > len(d.refs) {
			return nil, errors.Errorf("reference %d out of range", idx)
		}
		return d.refs[idx-1], nil
	case persistSxp, packageSxp, namespaceSxp:
		names, err := d.persistentNames()
		if err != nil {
			return nil, err
		}
		obj := &rObject{kind: kind, strs: names}
		d.refs = append(d.refs, obj)
		return obj, nil
	case symSxp:
		name, err := d.item()
		if err != nil {
			return nil, err
		}
		obj := &rObject{kind: symSxp, strs: name.strs}
		d.refs = append(d.refs, obj)
		return obj, nil
	case envSxp:
		return d.environment()
	case listSxp, langSxp, closSxp, promSxp, dotSxp, attrListSxp, attrLangSxp:
		return d.pairlist(flags)
	case altrepSxp:
		return d.altrep()
	}

	obj, err := d.vector(kind)
	if err != nil {
		return nil, err
	}
	if flags&hasAttrFlag != 0 {
		attr, err := d.item()
		if err != nil {
			return nil, err
		}
		// CHARSXP attributes are a legacy cache and carry no data.
		if kind != charSxp {
			obj.attr = attr
		}
	}
	return obj, nil
}

func (d *rReader) persistentNames() ([]string, error) {
	if _, err := d.int32(); err != nil {
		return nil, err
	}
	n, err := d.int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Wrapf(ErrCorrupt, "persistent name count %d", n)
	}
	names := make([]string, 0, min(int(n), readChunk))
	for i := int32(0); i < n; i++ {
		s, err := d.item()
		if err != nil {
			return nil, err
		}
		names = append(names, s.name())
	}
	return names, nil
}

func (d *rReader) environment() (*rObject, error) {
	// locked flag
	if _, err := d.int32(); err != nil {
		return nil, err
	}
	env := &rObject{kind: envSxp}
	d.refs = append(d.refs, env)
	for i := 0; i < 3; i++ {
		part, err := d.item()
		if err != nil {
			return nil, err
		}
		env.elems = append(env.elems, part)
	}
	attr, err := d.item()
	if err != nil {
		return nil, err
	}
	env.attr = attr
	return env, nil
}

// pairlist reads a chain of CONS cells iteratively, flattening tags and
// values into one object.
func (d *rReader) pairlist(flags uint32) (*rObject, error) {
	list := &rObject{kind: listSxp}
	switch uint8(flags & 0xff) {
	case langSxp, attrLangSxp:
		list.kind = langSxp
	case closSxp:
		list.kind = closSxp
	}

	for {
		kind := uint8(flags & 0xff)
		if flags&hasAttrFlag != 0 || kind == attrListSxp || kind == attrLangSxp {
			attr, err := d.item()
			if err != nil {
				return nil, err
			}
			if len(list.elems) == 0 {
				list.attr = attr
			}
		}
		tag := ""
		if flags&hasTagFlag != 0 {
			t, err := d.item()
			if err != nil {
				return nil, err
			}
			if t.kind == symSxp {
				tag = t.name()
			}
		}
		car, err := d.item()
		if err != nil {
			return nil, err
		}
		list.tags = append(list.tags, tag)
		list.elems = append(list.elems, car)

		next, err := d.int32()
		if err != nil {
			return nil, err
		}
		flags = uint32(next)
		switch uint8(flags & 0xff) {
		case listSxp, langSxp, closSxp, promSxp, dotSxp, attrListSxp, attrLangSxp:
			continue
		}
		if _, err := d.itemWithFlags(flags); err != nil {
			return nil, err
		}
		return list, nil
	}
}

func (d *rReader) vector(kind uint8) (*rObject, error) {
	obj := &rObject{kind: kind}
	switch kind {
	case charSxp:
		n, err := d.int32()
		if err != nil {
			return nil, err
		}
		if n == -1 {
			obj.na = true
			obj.strs = []string{"NA"}
			return obj, nil
		}
		if n < 0 {
			return nil, errors.Wrapf(ErrCorrupt, "string length %d", n)
		}
		b, err := d.bytes(int(n))
		if err != nil {
			return nil, err
		}
		obj.strs = []string{string(b)}
		return obj, nil

	case specialSxp, builtinSxp:
		n, err := d.int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.Wrapf(ErrCorrupt, "builtin name length %d", n)
		}
		b, err := d.bytes(int(n))
		if err != nil {
			return nil, err
		}
		obj.strs = []string{string(b)}
		return obj, nil

	case extptrSxp:
		d.refs = append(d.refs, obj)
		prot, err := d.item()
		if err != nil {
			return nil, err
		}
		tag, err := d.item()
		if err != nil {
			return nil, err
		}
		obj.elems = []*rObject{prot, tag}
		return obj, nil

	case weakrefSxp:
		d.refs = append(d.refs, obj)
		return obj, nil

	case s4Sxp:
		return obj, nil
	}

	n, err := d.length()
	if err != nil {
		return nil, err
	}
	switch kind {
	case lglSxp, intSxp:
		obj.ints, err = d.ints(n)
	case realSxp:
		obj.reals, err = d.reals(n)
	case cplxSxp:
		obj.reals, err = d.reals(2 * n)
	case rawSxp:
		obj.raw, err = d.bytes(n)
	case strSxp:
		obj.strs = make([]string, 0, min(n, readChunk))
		for i := 0; i < n; i++ {
			s, err := d.item()
			if err != nil {
				return nil, err
			}
			obj.strs = append(obj.strs, s.name())
		}
	case vecSxp, exprSxp:
		obj.elems = make([]*rObject, 0, min(n, readChunk))
		for i := 0; i < n; i++ {
			e, err := d.item()
			if err != nil {
				return nil, err
			}
			obj.elems = append(obj.elems, e)
		}
	default:
		return nil, errors.Wrapf(ErrUnsupported, "R type code %d", kind)
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// altrep expands the serialized state of the ALTREP classes R writes for
// compact sequences and wrapped vectors.
func (d *rReader) altrep() (*rObject, error) {
	info, err := d.item()
	if err != nil {
		return nil, err
	}
	state, err := d.item()
	if err != nil {
		return nil, err
	}
	attr, err := d.item()
	if err != nil {
		return nil, err
	}

	class := ""
	if len(info.elems) > 0 {
		class = info.elems[0].name()
	}

	var obj *rObject
	switch class {
	case "compact_intseq", "compact_realseq":
		vals := state.numbers()
		if len(vals) != 3 {
			return nil, errors.Errorf("%s state has %d values", class, len(vals))
		}
		n, first, inc := int(vals[0]), vals[1], vals[2]
		if n < 0 || n > maxCompact {
			return nil, errors.Wrapf(ErrCorrupt, "%s length %d", class, n)
		}
		if class == "compact_intseq" {
			obj = &rObject{kind: intSxp, ints: make([]int32, n)}
			for i := range obj.ints {
				obj.ints[i] = int32(first + float64(i)*inc)
			}
		} else {
			obj = &rObject{kind: realSxp, reals: make([]float64, n)}
			for i := range obj.reals {
				obj.reals[i] = first + float64(i)*inc
			}
		}
	case "wrap_real", "wrap_integer", "wrap_logical", "wrap_string", "wrap_complex", "wrap_raw", "wrap_list":
		if len(state.elems) == 0 {
			return nil, errors.Errorf("%s without payload", class)
		}
		inner := *state.elems[0]
		obj = &inner
	case "deferred_string":
		if len(state.elems) == 0 {
			return nil, errors.New("deferred_string without payload")
		}
		nums := state.elems[0].numbers()
		obj = &rObject{kind: strSxp, strs: make([]string, len(nums))}
		for i, v := range nums {
			obj.strs[i] = strconv.FormatFloat(v, 'g', 15, 64)
		}
	default:
		return nil, errors.Wrapf(ErrUnsupported, "ALTREP class %q", class)
	}

	if !attr.isNil() {
		obj.attr = attr
	}
	return obj, nil
}
