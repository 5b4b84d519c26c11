package dot

import (
	"strings"
	"unicode"

	"github.com/matzehuels/text2block/pkg/errors"
)

// Keyword is the graph keyword a description was anchored on.
type Keyword string

const (
	KeywordDigraph Keyword = "digraph"
	KeywordGraph   Keyword = "graph"
)

// keywords in lookup order. "digraph" contains "graph", so it must come first.
var keywords = []Keyword{KeywordDigraph, KeywordGraph}

// Description is a sanitized DOT text. The zero value is empty and is never
// returned by [Sanitize] without an error.
type Description struct {
	source  string
	keyword Keyword
}

// String returns the sanitized DOT text.
func (d Description) String() string { return d.source }

// Keyword returns the graph keyword the description starts with.
func (d Description) Keyword() Keyword { return d.keyword }

// IsZero reports whether d is the zero Description.
func (d Description) IsZero() bool { return d.source == "" }

// Len returns the length of the description in bytes.
func (d Description) Len() int { return len(d.source) }

// MarshalText returns the sanitized text, so descriptions encode as JSON strings.
func (d Description) MarshalText() ([]byte, error) {
	return []byte(d.source), nil
}

// UnmarshalText restores a description written by [Description.MarshalText].
// Text that is already sanitized is kept byte for byte; trailing whitespace is
// not trimmed again. Empty input yields the zero Description.
func (d *Description) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Description{}
		return nil
	}
	raw := string(text)
	idx, kw := locate(raw)
	if idx < 0 {
		return errors.New(errors.ErrCodeMalformedOutput,
			"no graph keyword found in description (%d bytes)", len(raw))
	}
	*d = Description{source: clean(raw[idx:]), keyword: kw}
	return nil
}

// Sanitize extracts a DOT description from raw generator output.
//
// It returns an error with code [errors.ErrCodeMalformedOutput] when raw
// contains neither "digraph" nor "graph". Matching is case-sensitive and the
// first occurrence wins, even if it sits inside surrounding prose.
func Sanitize(raw string) (Description, error) {
	idx, kw := locate(raw)
	if idx < 0 {
		return Description{}, errors.New(errors.ErrCodeMalformedOutput,
			"no graph keyword found in generator output (%d bytes)", len(raw))
	}

	body := strings.TrimRightFunc(raw[idx:], unicode.IsSpace)
	return Description{source: clean(body), keyword: kw}, nil
}

// MustSanitize is like [Sanitize] but panics on error.
// Intended for fixtures and tests.
func MustSanitize(raw string) Description {
	d, err := Sanitize(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func locate(raw string) (int, Keyword) {
	for _, kw := range keywords {
		if i := strings.Index(raw, string(kw)); i >= 0 {
			return i, kw
		}
	}
	return -1, ""
}

func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if IsAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// IsAllowed reports whether r survives sanitization unchanged.
func IsAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune(punctuation, r)
}

const punctuation = `->;{}"[]=#+*/^%()`
