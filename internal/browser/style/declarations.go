// Package style models inline CSS declarations and resolves CSS lengths.
package style

import (
	"strings"
)

// Declaration is a single "property: value" pair from an inline style attribute.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Declarations is an ordered inline style. Order is preserved so that a
// round trip through Parse and String does not reshuffle the attribute.
type Declarations []Declaration

// Parse splits a style attribute into declarations. Property names are
// lower-cased; later duplicates replace earlier ones.
func Parse(styleAttr string) Declarations {
	var decls Declarations
	for _, part := range strings.Split(styleAttr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop, val := strings.ToLower(strings.TrimSpace(kv[0])), strings.TrimSpace(kv[1])
		if prop == "" {
			continue
		}
		important := false
		if strings.HasSuffix(strings.ToLower(val), "!important") {
			important = true
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		decls = decls.set(Declaration{Property: prop, Value: val, Important: important})
	}
	return decls
}

// Get returns the value of property, or "" when it is not declared.
func (d Declarations) Get(property string) string {
	property = strings.ToLower(property)
	for _, decl := range d {
		if decl.Property == property {
			return decl.Value
		}
	}
	return ""
}

// Lookup returns the value of property, or fallback when it is not declared.
func (d Declarations) Lookup(property, fallback string) string {
	if v := d.Get(property); v != "" {
		return v
	}
	return fallback
}

// Set returns d with property set to value. An empty value removes the property.
func (d Declarations) Set(property, value string) Declarations {
	property = strings.ToLower(strings.TrimSpace(property))
	value = strings.TrimSpace(value)
	if value == "" {
		return d.Remove(property)
	}
	return d.set(Declaration{Property: property, Value: value})
}

func (d Declarations) set(decl Declaration) Declarations {
	for i := range d {
		if d[i].Property == decl.Property {
			d[i] = decl
			return d
		}
	}
	return append(d, decl)
}

// Remove returns d without property.
func (d Declarations) Remove(property string) Declarations {
	property = strings.ToLower(property)
	out := d[:0]
	for _, decl := range d {
		if decl.Property != property {
			out = append(out, decl)
		}
	}
	return out
}

// String serializes the declarations back into a style attribute.
func (d Declarations) String() string {
	var sb strings.Builder
	for i, decl := range d {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(decl.Property)
		sb.WriteString(": ")
		sb.WriteString(decl.Value)
		if decl.Important {
			sb.WriteString(" !important")
		}
		sb.WriteString(";")
	}
	return sb.String()
}
