// Package fetch resolves dataset locations to local directories.
//
// A location is a local directory, a local archive, an http(s) URL or an
// s3://bucket/key URI. Archives are downloaded into the cache directory and
// extracted once; later fetches of the same location reuse the extraction.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// CacheDirEnv overrides the default cache directory.
const CacheDirEnv = "AUTOML_CACHE_DIR"

const completeMarker = ".complete"

var (
	// ErrUnsupportedArchive is returned for files that are neither zip nor (gzipped) tar.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrUnsafePath is returned for archive entries escaping the extraction directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// HTTPClient is the subset of *http.Client used for downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// S3API is the subset of the S3 client used for downloads.
type S3API interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Fetcher downloads and extracts dataset archives. A Fetcher is safe for
// concurrent use; fetches are serialized.
type Fetcher struct {
	CacheDir string
	HTTP     HTTPClient
	S3       S3API
	Logger   *slog.Logger

	mu sync.Mutex
}

// New returns a Fetcher caching into cacheDir, or DefaultCacheDir when empty.
func New(cacheDir string, logger *slog.Logger) *Fetcher {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{CacheDir: cacheDir, HTTP: http.DefaultClient, Logger: logger}
}

// DefaultCacheDir returns $AUTOML_CACHE_DIR, falling back to the user cache directory.
func DefaultCacheDir() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "automl")
	}
	return filepath.Join(os.TempDir(), "automl")
}

// IsRemote reports whether location has to be downloaded.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") ||
		strings.HasPrefix(location, "https://") ||
		strings.HasPrefix(location, "s3://")
}

// Fetch returns the directory holding the dataset at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	if location == "" {
		return "", errors.New("empty dataset location")
	}
	if !IsRemote(location) {
		info, err := os.Stat(location)
		if err != nil {
			return "", errors.Wrapf(err, "dataset location %s", location)
		}
		if info.IsDir() {
			return filepath.Abs(location)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logger := f.logger().With("location", location)
	dir := filepath.Join(f.cacheDir(), cacheKey(location))
	data := filepath.Join(dir, "data")
	if _, err := os.Stat(filepath.Join(dir, completeMarker)); err == nil {
		logger.Debug("using cached dataset", "dir", dir)
		return root(data)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	archive := location
	if IsRemote(location) {
		var err error
		archive, err = f.download(ctx, location, dir)
		if err != nil {
			return "", err
		}
		defer os.Remove(archive)
	}

	if err := os.RemoveAll(data); err != nil {
		return "", errors.WithStack(err)
	}
	if err := extract(archive, nameOf(location), data); err != nil {
		return "", errors.Wrapf(err, "extracting %s", location)
	}
	if err := os.WriteFile(filepath.Join(dir, completeMarker), []byte(location), 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	logger.Info("dataset ready", "dir", dir)
	return root(data)
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

func (f *Fetcher) cacheDir() string {
	if f.CacheDir == "" {
		return DefaultCacheDir()
	}
	return f.CacheDir
}

func cacheKey(location string) string {
	if !IsRemote(location) {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		}
	}
	sum := sha256.Sum256([]byte(location))
	return hex.EncodeToString(sum[:8])
}

// datasetEntries are the top level names of the folder and VOC layouts.
var datasetEntries = map[string]bool{
	"train":       true,
	"val":         true,
	"valid":       true,
	"validation":  true,
	"test":        true,
	"Annotations": true,
	"ImageSets":   true,
	"JPEGImages":  true,
}

// root returns the dataset directory of an extracted archive. It descends at
// most once, into the archive's single top level directory, and not at all
// when dir already holds a dataset layout.
func root(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	var dirs []os.DirEntry
	n := 0
	for _, e := range entries {
		if ignored(e.Name()) {
			continue
		}
		if datasetEntries[e.Name()] {
			return dir, nil
		}
		n++
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	if n == 1 && len(dirs) == 1 {
		return filepath.Join(dir, dirs[0].Name()), nil
	}
	return dir, nil
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__MACOSX"
}
