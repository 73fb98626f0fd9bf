package reportfmt

import (
	"encoding/json"
	"io"

	"faulttrace/internal/crash"
)

// NDJSONSink writes one JSON object per report, newline-delimited.
type NDJSONSink struct {
	w io.Writer
}

// NewNDJSON returns an NDJSON sink.
func NewNDJSON(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

type jsonFrame struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Line     int32  `json:"line,omitempty"`
	Display  string `json:"display,omitempty"`
	RetAddr  uint32 `json:"ret_addr"`
	FuncAddr uint32 `json:"func_addr,omitempty"`
}

type jsonReport struct {
	Machine     string      `json:"machine"`
	Kind        string      `json:"kind"`
	Code        int32       `json:"code,omitempty"`
	Description string      `json:"description"`
	Frames      []jsonFrame `json:"frames"`
}

// Emit implements crash.Sink.
func (s *NDJSONSink) Emit(r *crash.Report) {
	j := jsonReport{
		Machine:     r.Machine,
		Kind:        r.Kind.String(),
		Code:        int32(r.Code),
		Description: r.Description,
		Frames:      make([]jsonFrame, 0, len(r.Frames)),
	}
	for _, f := range r.Frames {
		jf := jsonFrame{
			File:     f.File,
			Function: f.Function,
			Display:  f.Display,
			RetAddr:  uint32(f.RetAddr),
			FuncAddr: uint32(f.FuncAddr),
		}
		if f.HasLine {
			jf.Line = f.Line
		}
		j.Frames = append(j.Frames, jf)
	}

	data, err := json.Marshal(j)
	if err != nil {
		return
	}
	data = append(data, '\n')
	s.w.Write(data) //nolint:errcheck
}
