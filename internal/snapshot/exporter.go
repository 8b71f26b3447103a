package snapshot

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/filestore"
	"github.com/koustreak/d1meta/internal/logger"
)

// ExporterOptions configures an Exporter.
type ExporterOptions struct {
	Bucket string
	Prefix string // key prefix, e.g. "snapshots"
	Format Format // defaults to YAML

	// PresignTTL, when positive, makes Export return a download URL valid
	// for that long.
	PresignTTL time.Duration

	Logger *logger.Logger
}

// ExportResult describes a stored snapshot.
type ExportResult struct {
	Bucket string               `json:"bucket"`
	Object filestore.ObjectInfo `json:"object"`
	URL    string               `json:"url,omitempty"`
}

// Exporter writes snapshots to a filestore.Store under
// <prefix>/<database>/<generated_at RFC3339>.<format>.
type Exporter struct {
	store filestore.Store
	opts  ExporterOptions
	log   *logger.Logger
}

// NewExporter creates an Exporter writing to store.
func NewExporter(store filestore.Store, opts ExporterOptions) *Exporter {
	if opts.Format == "" {
		opts.Format = FormatYAML
	}
	log := logger.Nop()
	if opts.Logger != nil {
		log = opts.Logger.Component("snapshot")
	}
	return &Exporter{store: store, opts: opts, log: log}
}

// Key returns the object key snap is stored under.
func (e *Exporter) Key(snap *Snapshot) string {
	name := snap.GeneratedAt.UTC().Format(time.RFC3339) + "." + string(e.opts.Format)
	return path.Join(e.opts.Prefix, cleanSegment(snap.Database), name)
}

// Export encodes snap and uploads it, creating the bucket if needed.
func (e *Exporter) Export(ctx context.Context, snap *Snapshot) (*ExportResult, error) {
	if e.opts.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot bucket is not configured")
	}

	var buf bytes.Buffer
	if err := Encode(&buf, snap, e.opts.Format); err != nil {
		return nil, err
	}

	if err := e.store.EnsureBucket(ctx, e.opts.Bucket); err != nil {
		return nil, err
	}

	key := e.Key(snap)
	size := int64(buf.Len())
	info, err := e.store.PutObject(ctx, e.opts.Bucket, key, &buf, size, e.opts.Format.ContentType())
	if err != nil {
		e.log.ErrorWith("snapshot upload failed", err, map[string]any{"bucket": e.opts.Bucket, "key": key})
		return nil, err
	}
	if info.Key == "" {
		info.Key = key
	}

	res := &ExportResult{Bucket: e.opts.Bucket, Object: *info}
	if e.opts.PresignTTL > 0 {
		u, err := e.store.PresignGetURL(ctx, e.opts.Bucket, key, e.opts.PresignTTL)
		if err != nil {
			return nil, err
		}
		res.URL = u
	}

	e.log.InfoWith("snapshot exported", map[string]any{
		"bucket": e.opts.Bucket,
		"key":    key,
		"size":   size,
		"tables": len(snap.Schema.Tables),
	})
	return res, nil
}

// List returns the stored snapshots of database, oldest first.
func (e *Exporter) List(ctx context.Context, database string) ([]filestore.ObjectInfo, error) {
	if e.opts.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot bucket is not configured")
	}
	prefix := path.Join(e.opts.Prefix, cleanSegment(database)) + "/"
	return e.store.ListObjects(ctx, e.opts.Bucket, filestore.ListOptions{Prefix: prefix, Recursive: true})
}

// Load reads back the snapshot stored at key.
func (e *Exporter) Load(ctx context.Context, key string) (*Snapshot, error) {
	obj, err := e.store.GetObject(ctx, e.opts.Bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	f := FormatYAML
	if strings.HasSuffix(key, ".json") {
		f = FormatJSON
	}
	return Decode(obj, f)
}

// cleanSegment keeps a database name from escaping its key prefix.
func cleanSegment(s string) string {
	s = strings.Trim(strings.ReplaceAll(s, "..", ""), "/")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" {
		return "default"
	}
	return s
}
