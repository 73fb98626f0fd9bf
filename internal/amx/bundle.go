package amx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Bundle schema version - increment when the layout changes.
const bundleSchemaVersion uint16 = 1

// BundleExt is the file extension of program images.
const BundleExt = ".px"

// ErrBundleSchema indicates a bundle file with an unsupported schema.
var ErrBundleSchema = errors.New("amx: unsupported bundle schema")

// Bundle is the on-disk program image: code, data layout and export tables.
type Bundle struct {
	Schema   uint16
	Name     string
	Code     []Cell
	Main     Cell
	DataInit []Cell
	DataSize int
	HeapBase Cell
	Publics  []Public
	Natives  []string // native names resolved against the host at load
}

// Sum returns the image identity checksum of the bundle's code.
func (b *Bundle) Sum() uint32 { return codeSum(b.Code) }

// Instantiate builds a machine from the bundle, resolving native names
// against the host-provided table. Unknown natives resolve to nil and fail
// with a callback error only if actually called.
func (b *Bundle) Instantiate(hostNatives map[string]Native) (*Machine, error) {
	natives := make([]Native, len(b.Natives))
	for i, name := range b.Natives {
		natives[i] = hostNatives[name]
	}
	return New(Config{
		Name:     b.Name,
		Code:     b.Code,
		Main:     b.Main,
		DataInit: b.DataInit,
		DataSize: b.DataSize,
		HeapBase: b.HeapBase,
		Publics:  b.Publics,
		Natives:  natives,
	})
}

// ReadBundle loads a program image from path.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var b Bundle
	if err := msgpack.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("amx: decoding bundle %s: %w", path, err)
	}
	if b.Schema != bundleSchemaVersion {
		return nil, ErrBundleSchema
	}
	if b.Name == "" {
		b.Name = strippedName(path)
	}
	return &b, nil
}

// WriteBundle stores a program image at path, atomically.
func WriteBundle(path string, b *Bundle) error {
	b.Schema = bundleSchemaVersion
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if err := msgpack.NewEncoder(f).Encode(b); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func strippedName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
