package parser

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// cell is one value of a long-format grid table. Several arrays can share a
// file, told apart by Object. The shape is one past the largest index on each
// axis; cells absent from the table are missing.
type cell struct {
	Object string  `parquet:"name=object, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Member int32   `parquet:"name=member, type=INT32"`
	Time   int32   `parquet:"name=time, type=INT32"`
	Lat    int32   `parquet:"name=lat, type=INT32"`
	Lon    int32   `parquet:"name=lon, type=INT32"`
	Value  float64 `parquet:"name=value, type=DOUBLE"`
}

const (
	parquetBatch = 4096
	// maxCells bounds the dense array a sparse table may expand to.
	maxCells = 1 << 28
)

// Parquet loads arrays from long-format Parquet tables with the columns
// object, member, time, lat, lon and value.
type Parquet struct{}

func (Parquet) Load(ctx context.Context, key Key) (*Array, error) {
	objects, err := readCells(ctx, key.Path)
	if err != nil {
		return nil, err
	}

	name := key.Object
	if name == "" {
		names := sortedNames(objects)
		if len(names) == 0 {
			return nil, errors.Wrapf(ErrObjectNotFound, "no rows in %s", key.Path)
		}
		name = names[0]
	}
	cells, ok := objects[name]
	if !ok {
		return nil, errors.Wrapf(ErrObjectNotFound, "%q in %s", name, key.Path)
	}

	shape, err := cellShape(cells)
	if err != nil {
		return nil, errors.Wrapf(err, "%q in %s", name, key.Path)
	}
	out := NewArray(shape...)
	for i := range out.Data {
		out.Data[i] = nan
	}
	for _, c := range cells {
		out.Set(c.Value, int(c.Member), int(c.Time), int(c.Lat), int(c.Lon))
	}
	return out, nil
}

func (Parquet) Describe(ctx context.Context, path string) ([]ObjectInfo, error) {
	objects, err := readCells(ctx, path)
	if err != nil {
		return nil, err
	}
	var infos []ObjectInfo
	for _, name := range sortedNames(objects) {
		shape, err := cellShape(objects[name])
		if err != nil {
			return nil, errors.Wrapf(err, "%q in %s", name, path)
		}
		infos = append(infos, ObjectInfo{Name: name, Type: "double", Shape: shape})
	}
	return infos, nil
}

// WriteParquet stores a (member, time, lat, lon) array as rows of object
// name. Every cell gets a row, NaN included, so the table keeps the full
// shape even when a trailing day or row is all missing.
func WriteParquet(path, name string, a *Array) error {
	if a.Rank() != 4 {
		return errors.Wrapf(ErrNotArray, "want rank 4, got %v", a)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(cell), 4)
	if err != nil {
		return errors.Wrap(err, "parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	m, t, la, lo := a.Shape[0], a.Shape[1], a.Shape[2], a.Shape[3]
	for e := 0; e < m; e++ {
		for d := 0; d < t; d++ {
			for i := 0; i < la; i++ {
				for j := 0; j < lo; j++ {
					row := cell{Object: name, Member: int32(e), Time: int32(d), Lat: int32(i), Lon: int32(j), Value: a.At(e, d, i, j)}
					if err := pw.Write(row); err != nil {
						return errors.Wrap(err, "write row")
					}
				}
			}
		}
	}
	if err := pw.WriteStop(); err != nil {
		return errors.Wrap(err, "finish parquet")
	}
	return nil
}

func readCells(ctx context.Context, path string) (map[string][]cell, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	f.Close()

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(cell), 4)
	if err != nil {
		return nil, errors.Wrapf(err, "parquet %s", path)
	}
	defer pr.ReadStop()

	objects := map[string][]cell{}
	remaining := int(pr.GetNumRows())
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := make([]cell, min(remaining, parquetBatch))
		if err := pr.Read(&batch); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			if c.Member < 0 || c.Time < 0 || c.Lat < 0 || c.Lon < 0 {
				return nil, errors.Errorf("negative index in %s object %q", path, c.Object)
			}
			objects[c.Object] = append(objects[c.Object], c)
		}
		remaining -= len(batch)
	}
	return objects, nil
}

func cellShape(cells []cell) ([]int, error) {
	shape := make([]int, 4)
	for _, c := range cells {
		shape[0] = max(shape[0], int(c.Member)+1)
		shape[1] = max(shape[1], int(c.Time)+1)
		shape[2] = max(shape[2], int(c.Lat)+1)
		shape[3] = max(shape[3], int(c.Lon)+1)
	}
	size := 1
	for _, n := range shape {
		if n < 1 || n > maxCells/size {
			return nil, errors.Wrapf(ErrCorrupt, "shape %v exceeds %d cells", shape, maxCells)
		}
		size *= n
	}
	return shape, nil
}

func sortedNames(objects map[string][]cell) []string {
	names := make([]string, 0, len(objects))
	for n := range objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
