package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket
	// (e.g. "snapshots/prod/2024-01-01T00:00:00Z.yaml").
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// IsDir is true when the entry is a common prefix, not a stored object.
	IsDir bool `json:"is_dir"`
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters and paginates results.
type ListOptions struct {
	// Prefix restricts results to keys starting with this string.
	Prefix string

	// Recursive lists every object under Prefix. When false, keys are grouped
	// at the next "/" and returned as IsDir entries.
	Recursive bool

	// Limit caps the number of results returned. 0 means no limit.
	Limit int

	// Marker is the last key of the previous page. "" starts at the beginning.
	Marker string
}
