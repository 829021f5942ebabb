package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

type fakeObjects struct {
	exists bool
	err    error

	bucket, key string
	body        string
	opts        minio.PutObjectOptions
}

func (f *fakeObjects) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, f.err
}

func (f *fakeObjects) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.opts = bucket, key, string(b), opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

var at = time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("Licht_Bijbelzoek.nl_Export_2024_05_01.pdf", []byte("%PDF"), at)

	if !strings.HasPrefix(key, "exports/2024/05/01/") {
		t.Errorf("key = %q, want date prefix", key)
	}
	if !strings.HasSuffix(key, "-Licht_Bijbelzoek.nl_Export_2024_05_01.pdf") {
		t.Errorf("key = %q, want filename suffix", key)
	}
	digest := strings.TrimSuffix(strings.TrimPrefix(key, "exports/2024/05/01/"), "-Licht_Bijbelzoek.nl_Export_2024_05_01.pdf")
	if len(digest) != 16 {
		t.Errorf("digest = %q", digest)
	}

	if ObjectKey("a.pdf", []byte("one"), at) == ObjectKey("a.pdf", []byte("two"), at) {
		t.Error("different content should give different keys")
	}
	if ObjectKey("a.pdf", []byte("one"), at) != ObjectKey("a.pdf", []byte("one"), at.Add(-time.Hour)) {
		t.Error("same day and content should give the same key")
	}
	if k := ObjectKey("../../etc/passwd", nil, at); strings.Contains(k, "..") {
		t.Errorf("filename escaped its folder: %q", k)
	}
}

func TestArchive(t *testing.T) {
	objects := &fakeObjects{exists: true}
	s := &Store{objects: objects, bucket: "exports"}

	key, err := s.Archive(context.Background(), "x.docx", "application/test", []byte("data"), at)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if key != objects.key || objects.bucket != "exports" || objects.body != "data" {
		t.Errorf("put %s/%s %q, returned %q", objects.bucket, objects.key, objects.body, key)
	}
	if objects.opts.ContentType != "application/test" {
		t.Errorf("ContentType = %q", objects.opts.ContentType)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestArchiveErrors(t *testing.T) {
	boom := errors.New("unreachable")
	s := &Store{objects: &fakeObjects{err: boom}, bucket: "exports"}

	if _, err := s.Archive(context.Background(), "x.pdf", "application/pdf", []byte("d"), at); !errors.Is(err, boom) {
		t.Errorf("Archive err = %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Ping err = %v", err)
	}
	missing := &Store{objects: &fakeObjects{}, bucket: "exports"}
	if err := missing.Ping(context.Background()); err == nil {
		t.Error("Ping should fail for a missing bucket")
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}
