package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ResultKeyOpts lists every setting that changes what a request produces.
type ResultKeyOpts struct {
	Provider    string
	Model       string
	Format      string
	Layout      string
	MaxAttempts int
	ExplainMode string

	// ExplainModel identifies the explanation generator as "provider/model"
	// when it differs from the diagram generator.
	ExplainModel string
}

// Keyer builds cache keys.
type Keyer interface {
	ResultKey(intent string, opts ResultKeyOpts) string
}

// DefaultKeyer hashes the normalized intent together with the options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ResultKey returns "result:<sha256>". Leading and trailing whitespace in the
// intent does not change the key.
func (DefaultKeyer) ResultKey(intent string, opts ResultKeyOpts) string {
	data, _ := json.Marshal([]any{strings.TrimSpace(intent), opts})
	return "result:" + Hash(data)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ Keyer = DefaultKeyer{}
