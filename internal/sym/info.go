package sym

import (
	"sort"

	"faulttrace/internal/amx"
)

// LineRecord maps the code address of a line start to its line number.
type LineRecord struct {
	Addr amx.Cell
	Line int32
}

// FileRecord marks the first code address generated from a source file.
type FileRecord struct {
	Addr amx.Cell
	Name string
}

// ArgRecord describes one declared parameter of a function.
type ArgRecord struct {
	Func     amx.Cell // entry address of the owning function
	Slot     int      // parameter position, 0-based
	Name     string
	IsString bool
}

// Info is an in-memory symbol table. Build one with the record slices in
// any order; New sorts them by address.
type Info struct {
	funcs []Function
	lines []LineRecord
	files []FileRecord
	args  []ArgRecord
}

// New constructs a queryable table from raw records.
func New(funcs []Function, lines []LineRecord, files []FileRecord, args []ArgRecord) *Info {
	in := &Info{
		funcs: append([]Function(nil), funcs...),
		lines: append([]LineRecord(nil), lines...),
		files: append([]FileRecord(nil), files...),
		args:  append([]ArgRecord(nil), args...),
	}
	sort.Slice(in.funcs, func(i, j int) bool { return in.funcs[i].Entry < in.funcs[j].Entry })
	sort.Slice(in.lines, func(i, j int) bool { return in.lines[i].Addr < in.lines[j].Addr })
	sort.Slice(in.files, func(i, j int) bool { return in.files[i].Addr < in.files[j].Addr })
	return in
}

// Functions returns the function records, sorted by entry address.
func (in *Info) Functions() []Function { return in.funcs }

// Files returns the file records, sorted by address.
func (in *Info) Files() []FileRecord { return in.files }

// Lines returns the line records, sorted by address.
func (in *Info) Lines() []LineRecord { return in.lines }

// HasSymbols reports whether any debug data is present.
func (in *Info) HasSymbols() bool {
	return in != nil && (len(in.funcs) > 0 || len(in.lines) > 0 || len(in.files) > 0)
}

// FunctionAt returns the function whose [Entry, End) range contains addr.
func (in *Info) FunctionAt(addr amx.Cell) (Function, bool) {
	if in == nil || len(in.funcs) == 0 {
		return Function{}, false
	}
	// First function with Entry > addr; the candidate sits just before it.
	i := sort.Search(len(in.funcs), func(i int) bool { return in.funcs[i].Entry > addr })
	if i == 0 {
		return Function{}, false
	}
	f := in.funcs[i-1]
	if addr >= f.End {
		return Function{}, false
	}
	return f, true
}

// FileAt returns the source file containing addr.
func (in *Info) FileAt(addr amx.Cell) (string, bool) {
	if in == nil || len(in.files) == 0 {
		return "", false
	}
	i := sort.Search(len(in.files), func(i int) bool { return in.files[i].Addr > addr })
	if i == 0 {
		return "", false
	}
	return in.files[i-1].Name, true
}

// LineAt returns the line number of the last line start at or before addr.
func (in *Info) LineAt(addr amx.Cell) (int32, bool) {
	if in == nil || len(in.lines) == 0 {
		return 0, false
	}
	i := sort.Search(len(in.lines), func(i int) bool { return in.lines[i].Addr > addr })
	if i == 0 {
		return 0, false
	}
	return in.lines[i-1].Line, true
}

// StringArgAt reports whether the parameter slot of the function entered at
// entry is string-typed.
func (in *Info) StringArgAt(entry amx.Cell, slot int) bool {
	if in == nil {
		return false
	}
	for _, a := range in.args {
		if a.Func == entry && a.Slot == slot {
			return a.IsString
		}
	}
	return false
}
