// Package prompt renders the three prompts the diagram pipeline sends to a
// generator: the initial request, the repair request and the explanation
// request.
//
// Defaults are embedded in the binary. Any template can be replaced by a file
// through [Files]; replacements are checked when the [Set] is built, so a
// repair template that drops the failing description or the diagnostic is
// rejected up front rather than producing blind repair requests.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
)

//go:embed templates/*.tmpl
var defaults embed.FS

// Role names a prompt template.
type Role string

const (
	RoleInitial Role = "initial"
	RoleRepair  Role = "repair"
	RoleExplain Role = "explain"
)

// Roles lists every role in pipeline order.
var Roles = []Role{RoleInitial, RoleRepair, RoleExplain}

// Files overrides default templates with files on disk. Empty paths keep the
// embedded default.
type Files struct {
	Initial string `toml:"initial" yaml:"initial" json:"initial,omitempty"`
	Repair  string `toml:"repair" yaml:"repair" json:"repair,omitempty"`
	Explain string `toml:"explain" yaml:"explain" json:"explain,omitempty"`
}

func (f Files) path(r Role) string {
	switch r {
	case RoleInitial:
		return f.Initial
	case RoleRepair:
		return f.Repair
	case RoleExplain:
		return f.Explain
	}
	return ""
}

// InitialData is the data passed to the initial template.
type InitialData struct {
	Intent string
}

// RepairData is the data passed to the repair template.
type RepairData struct {
	Description string
	Diagnostic  string
}

// ExplainData is the data passed to the explain template.
type ExplainData struct {
	Intent      string
	Description string
	Structured  bool
}

// Set holds one parsed template per role. It is safe for concurrent use.
type Set struct {
	templates map[Role]*template.Template
}

// New parses the default templates, replacing those named in files.
func New(files Files) (*Set, error) {
	s := &Set{templates: make(map[Role]*template.Template, len(Roles))}
	for _, r := range Roles {
		text, err := source(r, files.path(r))
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(string(r)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s prompt template", r)
		}
		s.templates[r] = tmpl
	}
	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns the embedded templates. It panics if they fail to parse.
func Default() *Set {
	s, err := New(Files{})
	if err != nil {
		panic(err)
	}
	return s
}

func source(r Role, path string) (string, error) {
	if path == "" {
		b, err := defaults.ReadFile("templates/" + string(r) + ".tmpl")
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInternal, err, "read default %s prompt", r)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s prompt template", r)
	}
	return string(b), nil
}

// Initial renders the request for a first description.
func (s *Set) Initial(intent string) (string, error) {
	return s.execute(RoleInitial, InitialData{Intent: intent})
}

// Repair renders the request for a corrected description. The failing
// description and the diagnostic are embedded verbatim.
func (s *Set) Repair(desc dot.Description, diagnostic string) (string, error) {
	return s.execute(RoleRepair, RepairData{Description: desc.String(), Diagnostic: diagnostic})
}

// Explain renders the request for an explanation of a rendered description.
func (s *Set) Explain(intent string, desc dot.Description, structured bool) (string, error) {
	return s.execute(RoleExplain, ExplainData{Intent: intent, Description: desc.String(), Structured: structured})
}

func (s *Set) execute(r Role, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates[r].Execute(&buf, data); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "render %s prompt", r)
	}
	return buf.String(), nil
}

const (
	sentinelIntent      = "\x00intent\x00"
	sentinelDescription = "\x00description\x00"
	sentinelDiagnostic  = "\x00diagnostic\x00"
)

// verify renders every template with sentinel values and checks that the
// inputs each role depends on reach the prompt unchanged.
func (s *Set) verify() error {
	checks := []struct {
		role Role
		data any
		want []string
	}{
		{RoleInitial, InitialData{Intent: sentinelIntent}, []string{sentinelIntent}},
		{RoleRepair, RepairData{Description: sentinelDescription, Diagnostic: sentinelDiagnostic}, []string{sentinelDescription, sentinelDiagnostic}},
		{RoleExplain, ExplainData{Intent: sentinelIntent, Description: sentinelDescription}, []string{sentinelDescription}},
	}
	for _, c := range checks {
		out, err := s.execute(c.role, c.data)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s prompt template", c.role)
		}
		for _, w := range c.want {
			if !strings.Contains(out, w) {
				return errors.New(errors.ErrCodeInvalidConfig,
					"%s prompt template must include {{.%s}}", c.role, fieldName(w))
			}
		}
	}
	return nil
}

func fieldName(sentinel string) string {
	name := strings.Trim(sentinel, "\x00")
	return fmt.Sprintf("%s%s", strings.ToUpper(name[:1]), name[1:])
}
