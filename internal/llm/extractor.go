// Package llm - extractor.go describes the structured outputs requested from the model.
package llm

import (
	"fmt"
	"strings"

	"github.com/jonathan/speaker-outreach/internal/types"
)

// FieldType is the JSON type of a schema field.
type FieldType string

// Supported field types.
const (
	FieldString     FieldType = "string"
	FieldStringList FieldType = "[]string"
)

// ExtractionSchema defines the structured output expected from a model call.
// It is rendered into the prompt and, for providers that support it, sent as the
// response schema.
type ExtractionSchema struct {
	Name        string        // Schema name, also the key of its JSON Schema in internal/schemas
	Description string        // System prompt preamble describing the task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the output.
type SchemaField struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Enum        []string // Closed set of allowed values, if any
}

// RequiredFields lists the names of required fields.
func (s ExtractionSchema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// BuildExtractionPrompt constructs the prompt from a schema and the input payload.
func BuildExtractionPrompt(schema ExtractionSchema, input string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := fmt.Sprintf("%q", "string")
		switch {
		case len(field.Enum) > 0:
			quoted := make([]string, len(field.Enum))
			for j, v := range field.Enum {
				quoted[j] = fmt.Sprintf("%q", v)
			}
			typeHint = "one of " + strings.Join(quoted, " | ")
		case field.Type == FieldStringList:
			typeHint = `["string"]`
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  %q: %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input:\n\"\"\"\n")
	sb.WriteString(input)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// CategorizationSchema is the classification output: one of the five category labels plus a short reason.
func CategorizationSchema(description string) ExtractionSchema {
	return ExtractionSchema{
		Name:        "categorization",
		Description: description,
		Fields: []SchemaField{
			{
				Name:        "company_category",
				Type:        FieldString,
				Description: "Category of the speaker's employer",
				Required:    true,
				Enum:        types.CategoryLabels(),
			},
			{
				Name:        "reason",
				Type:        FieldString,
				Description: "One short sentence explaining the choice",
				Required:    true,
			},
		},
	}
}

// EmailDraftSchema is the drafting output.
func EmailDraftSchema(description string) ExtractionSchema {
	return ExtractionSchema{
		Name:        "email_draft",
		Description: description,
		Fields: []SchemaField{
			{
				Name:        "subject",
				Type:        FieldString,
				Description: "Subject line, at most 60 characters, no colons",
				Required:    true,
			},
			{
				Name:        "body",
				Type:        FieldString,
				Description: "Email body, 3-4 sentences",
				Required:    true,
			},
		},
	}
}
