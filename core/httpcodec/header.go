package httpcodec

import (
	"iter"
	"strings"
)

// Canonical field names used by the server.
const (
	HeaderServer           = "Server"
	HeaderContentType      = "Content-Type"
	HeaderContentLength    = "Content-Length"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderConnection       = "Connection"
	HeaderCookie           = "Cookie"
	HeaderSetCookie        = "Set-Cookie"
)

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered list of fields. Name lookups are case-insensitive and
// repeated names are kept as separate entries in insertion order.
// The zero value is an empty header ready to use.
type Header struct {
	fields []Field
}

// Add appends a field, keeping any existing ones with the same name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set replaces all fields named name with a single one. The new field takes
// the position of the first removed field, or is appended.
func (h *Header) Set(name, value string) {
	idx := -1
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			if idx < 0 {
				idx = len(out)
				out = append(out, Field{Name: name, Value: value})
			}
			continue
		}
		out = append(out, f)
	}
	h.fields = out
	if idx < 0 {
		h.Add(name, value)
	}
}

// Get returns the value of the first field named name, or "".
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order.
func (h *Header) Values(name string) []string {
	var vals []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Has reports whether at least one field named name exists.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	clear(h.fields[len(out):])
	h.fields = out
}

// Len returns the number of fields, counting duplicates.
func (h *Header) Len() int {
	return len(h.fields)
}

// All iterates over fields in order.
func (h *Header) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range h.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// hasToken reports whether any comma-separated element of any field named
// name equals token, ignoring case. Used for Connection and Transfer-Encoding.
func (h *Header) hasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for elem := range strings.SplitSeq(v, ",") {
			if strings.EqualFold(strings.TrimSpace(elem), token) {
				return true
			}
		}
	}
	return false
}
