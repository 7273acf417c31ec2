package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"ecoindex/internal/blob"
	"ecoindex/internal/core"
)

// IDSource allocates download ids. No two calls for the same domain return
// the same id. release must be called once the download has been stored or
// abandoned; sources that need no lock return a no-op.
type IDSource interface {
	Next(ctx context.Context, domain core.Domain) (id int64, release func(), err error)
}

// Id source names accepted by configuration.
const (
	SourceSequence = "sequence"
	SourceRedis    = "redis"
	SourceScan     = "scan"
)

func noRelease() {}

// Counter is the store-backed per-domain counter.
type Counter interface {
	Next(ctx context.Context, domain core.Domain) (int64, error)
}

// SequenceSource takes ids from a counter row in the relational store.
type SequenceSource struct {
	counter Counter
}

// NewSequenceSource returns a source backed by counter.
func NewSequenceSource(counter Counter) *SequenceSource {
	return &SequenceSource{counter: counter}
}

func (s *SequenceSource) Next(ctx context.Context, domain core.Domain) (int64, func(), error) {
	id, err := s.counter.Next(ctx, domain)
	if err != nil {
		return 0, nil, err
	}
	return id, noRelease, nil
}

// DefaultRedisPrefix namespaces the per-domain counters.
const DefaultRedisPrefix = "ecoindex:downloads:"

// RedisSource takes ids from INCR on a per-domain key. The first id is 0.
type RedisSource struct {
	client redis.Cmdable
	prefix string
}

// NewRedisSource returns a source using client. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisSource(client redis.Cmdable, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSource{client: client, prefix: prefix}
}

func (s *RedisSource) Next(ctx context.Context, domain core.Domain) (int64, func(), error) {
	n, err := s.client.Incr(ctx, s.prefix+string(domain)).Result()
	if err != nil {
		return 0, nil, core.StoreError("redis incr", err)
	}
	return n - 1, noRelease, nil
}

// scanLocks serialises scan-and-write per download directory across every
// ScanSource in the process.
var scanLocks sync.Map

// ScanSource picks the lowest n for which <dir>/file_<n>.csv does not exist.
// The directory lock is held from the scan until release, so a second export
// in the same process cannot pick the same n. Writers in other processes are
// caught by the create-only Put.
type ScanSource struct {
	blobs blob.Store
	dirs  Directories
}

// NewScanSource returns a source scanning the download directories in blobs.
func NewScanSource(blobs blob.Store, dirs Directories) *ScanSource {
	if len(dirs) == 0 {
		dirs = DefaultDirectories()
	}
	return &ScanSource{blobs: blobs, dirs: dirs}
}

func (s *ScanSource) Next(ctx context.Context, domain core.Domain) (int64, func(), error) {
	dir := s.dirs.Dir(domain)
	v, _ := scanLocks.LoadOrStore(dir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	var once sync.Once
	release := func() { once.Do(mu.Unlock) }

	infos, err := s.blobs.List(ctx, dir+"/")
	if err != nil {
		release()
		return 0, nil, core.StoreError("scan downloads", err)
	}
	taken := make(map[int64]struct{}, len(infos))
	for _, info := range infos {
		if n, ok := parseFileName(strings.TrimPrefix(info.Key, dir+"/")); ok {
			taken[n] = struct{}{}
		}
	}
	var id int64
	for {
		if _, ok := taken[id]; !ok {
			break
		}
		id++
	}
	return id, release, nil
}

// parseFileName extracts n from file_<n>.csv.
func parseFileName(name string) (int64, bool) {
	digits, ok := strings.CutPrefix(name, "file_")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".csv")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NewIDSource builds the named source. counter backs "sequence", client backs
// "redis" and blobs backs "scan".
func NewIDSource(name string, counter Counter, client redis.Cmdable, blobs blob.Store, dirs Directories) (IDSource, error) {
	switch name {
	case SourceSequence, "":
		if counter == nil {
			return nil, fmt.Errorf("sequence id source requires a store")
		}
		return NewSequenceSource(counter), nil
	case SourceRedis:
		if client == nil {
			return nil, fmt.Errorf("redis id source requires a redis client")
		}
		return NewRedisSource(client, ""), nil
	case SourceScan:
		if blobs == nil {
			return nil, fmt.Errorf("scan id source requires a blob store")
		}
		return NewScanSource(blobs, dirs), nil
	default:
		return nil, fmt.Errorf("unknown download id source %q", name)
	}
}
