package sym

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Companion file schema version - increment when the payload changes.
const fileSchemaVersion uint16 = 1

// Ext is the extension of companion symbol files.
const Ext = ".sym"

// ErrSchema indicates a symbol file with an unsupported schema version.
var ErrSchema = errors.New("sym: unsupported symbol file schema")

// payload is the on-disk shape of a symbol table.
type payload struct {
	Schema uint16
	Sum    uint32 // checksum of the image this table describes
	Funcs  []Function
	Lines  []LineRecord
	Files  []FileRecord
	Args   []ArgRecord
}

// CompanionPath derives the symbol file path for a program image path.
func CompanionPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + Ext
}

// LoadFile reads a companion symbol file. A missing file is not an error:
// it returns nil and ok=false, since symbols are optional.
func LoadFile(path string) (*Info, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close() //nolint:errcheck

	var p payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return nil, false, fmt.Errorf("sym: decoding %s: %w", path, err)
	}
	if p.Schema != fileSchemaVersion {
		return nil, false, ErrSchema
	}
	return New(p.Funcs, p.Lines, p.Files, p.Args), true, nil
}

// WriteFile stores a symbol table as a companion file, atomically.
// sum records the identity of the image the table describes.
func WriteFile(path string, sum uint32, funcs []Function, lines []LineRecord, files []FileRecord, args []ArgRecord) error {
	p := payload{
		Schema: fileSchemaVersion,
		Sum:    sum,
		Funcs:  funcs,
		Lines:  lines,
		Files:  files,
		Args:   args,
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if err := msgpack.NewEncoder(f).Encode(&p); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

