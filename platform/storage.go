package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrObjectNotFound = errors.New("object not found")

// Bucket is the object store holding uploaded image bytes.
type Bucket interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var (
	ObjectStore Bucket
)

// InitBucket builds ObjectStore from cfg.StorageMode ("gcs" or "memory").
func InitBucket(ctx context.Context, cfg *Config) error {
	switch cfg.StorageMode {
	case "memory":
		Logger.Warnf("object storage running in memory, uploads are lost on restart")
		ObjectStore = NewMemoryBucket()
		return nil
	case "gcs":
		bucket, err := NewGCSBucket(ctx, cfg.GCSBucket, cfg.StorageEmulatorHost)
		if err != nil {
			return err
		}
		ObjectStore = bucket
		return nil
	default:
		return fmt.Errorf("unsupported STORAGE_MODE %q", cfg.StorageMode)
	}
}

type GCSBucket struct {
	client *storage.Client
	name   string
}

// NewGCSBucket connects to Cloud Storage, or to an emulator when emulatorHost is set.
func NewGCSBucket(ctx context.Context, name, emulatorHost string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(emulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	Logger.Infof("object storage initialized, bucket=%s emulator=%q", name, emulatorHost)
	return &GCSBucket{client: client, name: name}, nil
}

func (b *GCSBucket) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *GCSBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read GCS object %q: %w", key, err)
	}
	return reader, nil
}

func (b *GCSBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := b.client.Bucket(b.name).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.name, err)
	}
	return nil
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBucket keeps objects in process memory. It backs local runs and tests.
type MemoryBucket struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	reads   int
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memoryObject)}
}

func (b *MemoryBucket) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (b *MemoryBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (b *MemoryBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

// Has reports whether key is stored.
func (b *MemoryBucket) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *MemoryBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// Reads counts Get calls, including misses.
func (b *MemoryBucket) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}
