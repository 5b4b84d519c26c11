// Package explain turns generator text into an [Explanation].
//
// In text mode the generator output is the explanation. In structured mode
// the generator is asked for
//
//	{"explanation": {"overview": "...", "details": [{"heading": "...", "description": "..."}]}}
//
// and the reply is validated against a JSON Schema before it is decoded.
// Replies that do not validate fall back to text, so a chatty model never
// costs the caller an explanation.
package explain

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/matzehuels/text2block/pkg/errors"
)

// Mode selects how explanations are requested and parsed.
type Mode string

const (
	ModeText       Mode = "text"
	ModeStructured Mode = "structured"
)

// ParseMode validates a mode name. Empty selects [ModeText].
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeText:
		return ModeText, nil
	case ModeStructured:
		return ModeStructured, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown explain mode %q (valid: text, structured)", s)
}

// Detail is one headed section of a structured explanation.
type Detail struct {
	Heading     string `json:"heading" bson:"heading"`
	Description string `json:"description" bson:"description"`
}

// Explanation is the human-readable account of a rendered diagram.
type Explanation struct {
	Overview   string   `json:"overview" bson:"overview"`
	Details    []Detail `json:"details,omitempty" bson:"details,omitempty"`
	Structured bool     `json:"structured" bson:"structured"`
}

// Text renders the explanation as plain text.
func (e Explanation) Text() string {
	if len(e.Details) == 0 {
		return e.Overview
	}
	var b strings.Builder
	b.WriteString(e.Overview)
	for _, d := range e.Details {
		fmt.Fprintf(&b, "\n\n%s\n%s", d.Heading, d.Description)
	}
	return b.String()
}

// IsZero reports whether the explanation is empty.
func (e Explanation) IsZero() bool {
	return e.Overview == "" && len(e.Details) == 0
}

const schemaURL = "https://text2block.dev/schemas/explanation.json"

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://text2block.dev/schemas/explanation.json",
  "type": "object",
  "required": ["explanation"],
  "properties": {
    "explanation": {
      "type": "object",
      "required": ["overview"],
      "properties": {
        "overview": { "type": "string", "minLength": 1 },
        "details": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["heading", "description"],
            "properties": {
              "heading": { "type": "string" },
              "description": { "type": "string" }
            }
          }
        }
      }
    }
  }
}`

// Parser decodes generator replies. It is safe for concurrent use.
type Parser struct {
	schema *jsonschema.Schema
}

// NewParser compiles the explanation schema.
func NewParser() (*Parser, error) {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal explanation schema: %w", err)
	}
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add explanation schema resource: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile explanation schema: %w", err)
	}
	return &Parser{schema: sch}, nil
}

// Parse decodes raw according to mode. Structured replies that fail to
// validate are returned as text; the second result reports why.
func (p *Parser) Parse(raw string, mode Mode) (Explanation, error) {
	if mode != ModeStructured {
		return Text(raw), nil
	}
	e, err := p.ParseStructured(raw)
	if err != nil {
		return Text(raw), err
	}
	return e, nil
}

// Text wraps raw generator output as a text explanation.
func Text(raw string) Explanation {
	return Explanation{Overview: strings.TrimSpace(raw)}
}

// ParseStructured extracts, validates and decodes the JSON object in raw.
// Surrounding prose and Markdown fences are ignored.
func (p *Parser) ParseStructured(raw string) (Explanation, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return Explanation{}, errors.New(errors.ErrCodeMalformedOutput, "explanation contains no JSON object")
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(obj))
	if err != nil {
		return Explanation{}, errors.Wrap(errors.ErrCodeMalformedOutput, err, "explanation is not valid JSON")
	}
	if err := p.schema.Validate(doc); err != nil {
		return Explanation{}, errors.Wrap(errors.ErrCodeMalformedOutput, err, "explanation does not match schema")
	}

	var envelope struct {
		Explanation Explanation `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(obj), &envelope); err != nil {
		return Explanation{}, errors.Wrap(errors.ErrCodeMalformedOutput, err, "decode explanation")
	}
	e := envelope.Explanation
	e.Structured = true
	return e, nil
}

func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
