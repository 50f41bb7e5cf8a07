package session

import (
	"encoding/json"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Stage identifies which block of 7-Zip output is being parsed.
type Stage string

const (
	StageHeaders Stage = "HEADERS"
	StageBody    Stage = "BODY"
	StageFooters Stage = "FOOTERS"
)

func (s Stage) rank() int {
	switch s {
	case StageBody:
		return 1
	case StageFooters:
		return 2
	default:
		return 0
	}
}

// DataType classifies the shape of body lines for the running operation.
type DataType string

const (
	DataUnknown  DataType = ""
	DataSymbol   DataType = "symbol"
	DataHash     DataType = "hash"
	DataList     DataType = "list"
	DataTechList DataType = "techList"
)

// ParseDataType maps a user supplied name onto a DataType.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "":
		return DataUnknown, true
	case "symbol":
		return DataSymbol, true
	case "hash":
		return DataHash, true
	case "list":
		return DataList, true
	case "techList", "techlist", "tech-list", "slt":
		return DataTechList, true
	default:
		return DataUnknown, false
	}
}

// DataTypeForCommand infers the body format from a 7-Zip command line: "h"
// prints hash rows and "l" with -slt prints technical blocks. Other commands
// are inferred later from their header lines.
func DataTypeForCommand(args []string) DataType {
	if len(args) == 0 {
		return DataUnknown
	}
	switch strings.ToLower(args[0]) {
	case "h":
		return DataHash
	case "l":
		for _, arg := range args[1:] {
			if arg == "--" {
				break
			}
			if strings.EqualFold(arg, "-slt") {
				return DataTechList
			}
		}
	}
	return DataUnknown
}

// Info is a string map that remembers the order keys were first seen in.
// Setting an existing key replaces its value but keeps its position.
type Info struct {
	keys   []string
	values map[string]string
}

// Set stores value under key.
func (in *Info) Set(key, value string) {
	if in.values == nil {
		in.values = make(map[string]string)
	}
	if _, ok := in.values[key]; !ok {
		in.keys = append(in.keys, key)
	}
	in.values[key] = value
}

// Get returns the value stored under key.
func (in Info) Get(key string) (string, bool) {
	value, ok := in.values[key]
	return value, ok
}

// Len reports the number of distinct keys.
func (in Info) Len() int {
	return len(in.keys)
}

// Keys returns the keys in first-seen order.
func (in Info) Keys() []string {
	return slices.Clone(in.keys)
}

// All iterates key/value pairs in first-seen order.
func (in Info) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, key := range in.keys {
			if !yield(key, in.values[key]) {
				return
			}
		}
	}
}

// Map returns an unordered copy of the pairs.
func (in Info) Map() map[string]string {
	if in.values == nil {
		return map[string]string{}
	}
	return maps.Clone(in.values)
}

// InfoPair is one metadata key/value pair.
type InfoPair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Pairs returns the pairs in first-seen order.
func (in Info) Pairs() []InfoPair {
	out := make([]InfoPair, 0, len(in.keys))
	for key, value := range in.All() {
		out = append(out, InfoPair{Key: key, Value: value})
	}
	return out
}

// MarshalJSON encodes the pairs as a JSON object in first-seen order.
func (in Info) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, key := range in.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(in.values[key])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func (in *Info) clone() Info {
	return Info{keys: slices.Clone(in.keys), values: maps.Clone(in.values)}
}

// Progress is the latest percentage progress reported by 7-Zip.
type Progress struct {
	Percent   int    `json:"percent" yaml:"percent"`
	FileCount *int   `json:"file_count,omitempty" yaml:"file_count,omitempty"`
	FileName  string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Symbol    string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
}

func (p *Progress) clone() *Progress {
	if p == nil {
		return nil
	}
	out := *p
	if p.FileCount != nil {
		count := *p.FileCount
		out.FileCount = &count
	}
	return &out
}

// Entry is one per-file body line: a file being added or extracted, a hash
// row, a listing row, or a technical listing block.
type Entry struct {
	Symbol     string            `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Status     string            `json:"status,omitempty" yaml:"status,omitempty"`
	File       string            `json:"file" yaml:"file"`
	Hash       string            `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size       *int64            `json:"size,omitempty" yaml:"size,omitempty"`
	PackedSize *int64            `json:"packed_size,omitempty" yaml:"packed_size,omitempty"`
	Attributes string            `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Modified   string            `json:"modified,omitempty" yaml:"modified,omitempty"`
	Fields     map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Record is the mutable state attached to one process invocation.
type Record struct {
	Stage    Stage
	DataType DataType
	Info     Info
	Progress *Progress
	Err      *ErrorRecord
}

func newRecord(dataType DataType) *Record {
	return &Record{Stage: StageHeaders, DataType: dataType}
}

// advance moves the record forward to next. Regressions are refused.
func (r *Record) advance(next Stage) bool {
	if next.rank() <= r.Stage.rank() {
		return false
	}
	r.Stage = next
	return true
}

// setDataType assigns the data type once; later assignments are ignored.
func (r *Record) setDataType(dataType DataType) bool {
	if r.DataType != DataUnknown || dataType == DataUnknown {
		return false
	}
	r.DataType = dataType
	return true
}

// attachError stores err unless an error is already attached.
func (r *Record) attachError(err *ErrorRecord) bool {
	if r.Err != nil {
		return false
	}
	r.Err = err
	return true
}

func (r *Record) clone() Record {
	out := Record{
		Stage:    r.Stage,
		DataType: r.DataType,
		Info:     r.Info.clone(),
		Progress: r.Progress.clone(),
	}
	if r.Err != nil {
		errCopy := *r.Err
		errCopy.Raw = slices.Clone(r.Err.Raw)
		out.Err = &errCopy
	}
	return out
}
