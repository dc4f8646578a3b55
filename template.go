package tik

import (
	"fmt"
	"strings"
)

// Templater expands a template string against a record. The mapping resolver
// only decides which strings get expanded against which records; the expansion
// syntax itself lives behind this interface so callers can swap in their own
// engine.
type Templater interface {
	Expand(template string, record Record) string
}

// TemplateFunc is a wrapper like http.HandlerFunc which allows you to use a
// bare func as a Templater.
type TemplateFunc func(template string, record Record) string

// Expand implements Templater.
func (f TemplateFunc) Expand(template string, record Record) string { return f(template, record) }

// TildeTemplater is the default Templater. It understands tokens of the form
// {~D:Record.field~} (or the long form {~Data:Record.field~}): the token is
// replaced by the record's value at the dotted address, with the leading
// "Record." component referring to the record itself. Unknown addresses and
// unknown tags expand to the empty string; everything outside tokens passes
// through verbatim.
type TildeTemplater struct{}

const (
	tokenOpen  = "{~"
	tokenClose = "~}"
)

// Expand implements Templater.
func (TildeTemplater) Expand(template string, record Record) string {
	if !strings.Contains(template, tokenOpen) {
		return template
	}
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, tokenOpen)
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], tokenClose)
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		token := rest[start+len(tokenOpen) : start+end]
		rest = rest[start+end+len(tokenClose):]
		b.WriteString(expandToken(token, record))
	}
}

func expandToken(token string, record Record) string {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	switch strings.TrimSpace(parts[0]) {
	case "D", "Data":
		return stringifyValue(resolveAddress(strings.TrimSpace(parts[1]), record))
	default:
		return ""
	}
}

// resolveAddress walks a dotted address into the record. The first component
// "Record" names the record itself and is skipped.
func resolveAddress(address string, record Record) interface{} {
	parts := strings.Split(address, ".")
	if len(parts) > 0 && parts[0] == "Record" {
		parts = parts[1:]
	}
	var cur interface{} = map[string]interface{}(record)
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			if r, isRec := cur.(Record); isRec {
				m = map[string]interface{}(r)
			} else {
				return nil
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringifyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
