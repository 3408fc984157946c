// Package parser loads gridded arrays from statistical data files.
//
// Every input format sits behind Loader, which resolves a named array from a
// derived key. RData (R's save format), netCDF classic and a long-format
// Parquet layout are supported.
package parser

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrFileNotFound   = errors.New("data file not found")
	ErrObjectNotFound = errors.New("object not found in data file")
	ErrNotArray       = errors.New("object is not a numeric array")
	ErrDayRange       = errors.New("day range outside the time axis")
	ErrUnsupported    = errors.New("unsupported data encoding")
	ErrCorrupt        = errors.New("corrupt data file")
)

// Key identifies one array: the resolved file path and the object inside it.
// An empty Object selects the first array-like object in the file.
type Key struct {
	Path   string
	Object string
}

// Loader resolves a named array from a derived key.
type Loader interface {
	Load(ctx context.Context, key Key) (*Array, error)
}

// ObjectInfo describes one object stored in a data file.
type ObjectInfo struct {
	Name  string
	Type  string
	Shape []int
}

// Describer lists the objects of a data file.
type Describer interface {
	Describe(ctx context.Context, path string) ([]ObjectInfo, error)
}

// Open returns the loader for an input format name.
func Open(format string) (Loader, error) {
	switch format {
	case "rdata":
		return RData{}, nil
	case "netcdf":
		return NetCDF{}, nil
	case "parquet":
		return Parquet{}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "input format %q", format)
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrFileNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}
