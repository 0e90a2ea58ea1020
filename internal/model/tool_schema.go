package model

import "sort"

// PropertySchema describes one configurable property of a tool kind.
type PropertySchema struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ToolSchema is the JSON-Schema-like descriptor of a tool kind, used to
// build its configuration form.
type ToolSchema struct {
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]PropertySchema `json:"properties"`
	Required    []string                  `json:"required,omitempty"`
}

// FormField is one row of a tool configuration form.
type FormField struct {
	Name        string
	Label       string
	Description string
	Required    bool
}

// Fields returns the form rows for the schema, sorted by property name.
// The label falls back to the property name when no title is declared.
func (s ToolSchema) Fields() []FormField {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	fields := make([]FormField, 0, len(s.Properties))
	for name, p := range s.Properties {
		label := p.Title
		if label == "" {
			label = name
		}
		fields = append(fields, FormField{
			Name:        name,
			Label:       label,
			Description: p.Description,
			Required:    required[name],
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// ToolSchemas maps a tool kind to its descriptor.
type ToolSchemas map[string]ToolSchema

// Kinds returns the tool kinds in sorted order.
func (s ToolSchemas) Kinds() []string {
	kinds := make([]string, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
