// Package bson models the small slice of the engine's document values
// the planner needs: literals inside Pure ops and selectors, and the
// rendering of compiled pipeline stages and map/reduce specs.
package bson

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type Value interface {
	valueNode()
	String() string
}

type (
	// A Doc is an ordered document.
	Doc struct {
		Entries []Entry
	}
	Entry struct {
		Key   string
		Value Value
	}
	Arr struct {
		Elems []Value
	}
	String  string
	Int64   int64
	Float64 float64
	Bool    bool
	Null    struct{}
	// JavaScript holds rendered JS source carried verbatim into
	// map/reduce specs and $where selectors.
	JavaScript string
)

func (*Doc) valueNode()      {}
func (*Arr) valueNode()      {}
func (String) valueNode()    {}
func (Int64) valueNode()     {}
func (Float64) valueNode()   {}
func (Bool) valueNode()      {}
func (Null) valueNode()      {}
func (JavaScript) valueNode() {}

func NewDoc(entries ...Entry) *Doc {
	return &Doc{Entries: entries}
}

func NewArr(elems ...Value) *Arr {
	return &Arr{Elems: elems}
}

// Set appends or replaces the entry for key, preserving entry order.
func (d *Doc) Set(key string, v Value) *Doc {
	for k, entry := range d.Entries {
		if entry.Key == key {
			out := &Doc{Entries: make([]Entry, len(d.Entries))}
			copy(out.Entries, d.Entries)
			out.Entries[k].Value = v
			return out
		}
	}
	out := &Doc{Entries: make([]Entry, 0, len(d.Entries)+1)}
	out.Entries = append(out.Entries, d.Entries...)
	return &Doc{Entries: append(out.Entries, Entry{key, v})}
}

func (d *Doc) Get(key string) (Value, bool) {
	for _, entry := range d.Entries {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

func (d *Doc) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for k, entry := range d.Entries {
		if k > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(entry.Key))
		b.WriteString(": ")
		b.WriteString(entry.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (a *Arr) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for k, elem := range a.Elems {
		if k > 0 {
			b.WriteString(", ")
		}
		b.WriteString(elem.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (s String) String() string     { return strconv.Quote(string(s)) }
func (i Int64) String() string      { return strconv.FormatInt(int64(i), 10) }
func (f Float64) String() string    { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (b Bool) String() string       { return strconv.FormatBool(bool(b)) }
func (Null) String() string         { return "null" }
func (j JavaScript) String() string { return fmt.Sprintf("Js(%s)", string(j)) }

// Equal is structural equality over values.
func Equal(a, b Value) bool {
	return reflect.DeepEqual(a, b)
}
