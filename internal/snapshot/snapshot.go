// Package snapshot captures the full reflected schema of a database as a
// single document and archives it in object storage.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/schema"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json", case-insensitively.
// The empty string selects YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported snapshot format %q", s))
	}
}

// ContentType is the MIME type used when serving or storing the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// Snapshot is the full schema of one database at a point in time.
type Snapshot struct {
	Database    string            `json:"database" yaml:"database"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Schema      schema.SchemaInfo `json:"schema" yaml:"schema"`
}

// Build inspects every table through r.
func Build(ctx context.Context, r schema.Reader, database string) (*Snapshot, error) {
	info, err := r.InspectSchema(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Database:    database,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Schema:      *info,
	}, nil
}

// Encode writes snap to w in format f.
func Encode(w io.Writer, snap *Snapshot, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return errs.Wrap(errs.ErrKindUnknown, "failed to encode snapshot", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return errs.Wrap(errs.ErrKindUnknown, "failed to encode snapshot", err)
		}
		if err := enc.Close(); err != nil {
			return errs.Wrap(errs.ErrKindUnknown, "failed to encode snapshot", err)
		}
	default:
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported snapshot format %q", f))
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var snap Snapshot
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to decode snapshot", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to decode snapshot", err)
		}
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported snapshot format %q", f))
	}
	return &snap, nil
}
