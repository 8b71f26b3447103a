// Package memory provides an in-process filestore.Store.
//
// It keeps every object in a map and is meant for local development and
// tests where no object storage server is available.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/filestore"
)

type stored struct {
	data []byte
	info filestore.ObjectInfo
}

// Store is an in-memory filestore.Store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]stored
	now     func() time.Time
}

var _ filestore.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{buckets: make(map[string]map[string]stored), now: time.Now}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	if bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "bucket name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]stored)
	}
	return nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (*filestore.ObjectInfo, error) {
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "object key is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read object body", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to put object", err)
	}

	sum := md5.Sum(data)
	info := filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such bucket: "+bucket)
	}
	objects[key] = stored{data: data, info: info}
	return &info, nil
}

func (s *Store) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such bucket: "+bucket)
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := []filestore.ObjectInfo{}
	seenDirs := make(map[string]bool)
	for _, k := range keys {
		if !strings.HasPrefix(k, opts.Prefix) || k <= opts.Marker {
			continue
		}
		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				dir := opts.Prefix + rest[:i+1]
				if !seenDirs[dir] {
					seenDirs[dir] = true
					results = append(results, filestore.ObjectInfo{Key: dir, Size: -1, IsDir: true})
				}
				continue
			}
		}
		results = append(results, objects[k].info)
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

func (s *Store) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &object{Reader: bytes.NewReader(obj.data), info: &info}, nil
}

func (s *Store) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	obj, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &info, nil
}

// PresignGetURL returns a memory:// URL. It cannot be fetched over HTTP but
// identifies the object and its expiry.
func (s *Store) PresignGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if _, err := s.lookup(bucket, key); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {s.now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}

func (s *Store) lookup(bucket, key string) (stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return stored{}, errs.New(errs.ErrKindNotFound, "no such bucket: "+bucket)
	}
	obj, ok := objects[key]
	if !ok {
		return stored{}, errs.New(errs.ErrKindNotFound, "no such key: "+key)
	}
	return obj, nil
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error                 { return nil }
func (o *object) Info() *filestore.ObjectInfo { return o.info }
