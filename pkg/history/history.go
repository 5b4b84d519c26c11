// Package history records every diagram request, successful or not, so users
// can list past requests and inspect why one failed.
//
// A [Record] captures the request, the outcome (error code, stage, attempt
// count, last diagnostic) and, on success, the description and explanation.
// Artifacts themselves are not stored. Backends:
//
//   - [NullStore]: history disabled
//   - [FileStore]: one JSON file per record, for the CLI
//   - [MongoStore]: a MongoDB collection, for the HTTP server
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/text2block/pkg/diagram"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
)

// Backend names accepted by configuration.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Status is the outcome of a request.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one stored request.
type Record struct {
	ID          string              `json:"id" bson:"id"`
	Intent      string              `json:"intent" bson:"intent"`
	Provider    string              `json:"provider,omitempty" bson:"provider,omitempty"`
	Model       string              `json:"model,omitempty" bson:"model,omitempty"`
	Format      string              `json:"format,omitempty" bson:"format,omitempty"`
	Status      Status              `json:"status" bson:"status"`
	Code        errors.Code         `json:"code,omitempty" bson:"code,omitempty"`
	Stage       errors.Stage        `json:"stage,omitempty" bson:"stage,omitempty"`
	Message     string              `json:"message,omitempty" bson:"message,omitempty"`
	Attempts    int                 `json:"attempts" bson:"attempts"`
	Diagnostic  string              `json:"diagnostic,omitempty" bson:"diagnostic,omitempty"`
	Description string              `json:"description,omitempty" bson:"description,omitempty"`
	Explanation explain.Explanation `json:"explanation" bson:"explanation"`
	Location    string              `json:"location,omitempty" bson:"location,omitempty"`
	Cached      bool                `json:"cached" bson:"cached"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	Duration    time.Duration       `json:"duration" bson:"duration"`
}

// Meta describes the configuration a request ran with.
type Meta struct {
	Provider string
	Model    string
	Format   string
}

// NewRecord creates a record with a fresh ID for intent.
func NewRecord(intent string, meta Meta) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Intent:    intent,
		Provider:  meta.Provider,
		Model:     meta.Model,
		Format:    meta.Format,
		CreatedAt: time.Now().UTC(),
	}
}

// FromResult records a successful request.
func FromResult(intent string, meta Meta, res *diagram.Result) *Record {
	r := NewRecord(intent, meta)
	r.Status = StatusSucceeded
	r.Attempts = len(res.Attempts)
	r.Description = res.Description.String()
	r.Explanation = res.Explanation
	r.Duration = res.Duration
	if res.Artifact != nil {
		r.Location = res.Artifact.Location
	}
	return r
}

// FromError records a failed request.
func FromError(intent string, meta Meta, err error, elapsed time.Duration) *Record {
	r := NewRecord(intent, meta)
	r.Status = StatusFailed
	r.Code = errors.GetCode(err)
	if r.Code == "" {
		r.Code = errors.ErrCodeInternal
	}
	r.Stage = errors.StageOf(err)
	r.Message = err.Error()
	r.Attempts = errors.AttemptsOf(err)
	r.Diagnostic = errors.DiagnosticOf(err)
	r.Duration = elapsed
	return r
}

// Store persists records.
type Store interface {
	// Save stores r, replacing any record with the same ID.
	Save(ctx context.Context, r *Record) error

	// Get returns the record with id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)

	Close() error
}

// NullStore discards every record.
type NullStore struct{}

// NewNullStore creates a store that keeps nothing.
func NewNullStore() Store { return NullStore{} }

func (NullStore) Save(context.Context, *Record) error { return nil }

func (NullStore) Get(_ context.Context, id string) (*Record, error) {
	return nil, notFound(id)
}

func (NullStore) List(context.Context, int) ([]*Record, error) { return nil, nil }

func (NullStore) Close() error { return nil }

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "history record %s not found", id)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
