package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeS3 answers the handful of requests the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	switch {
	case r.Method == http.MethodHead && key == "":
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := New(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "proposals",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, fake
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Bucket: "b"}); err == nil {
		t.Error("expected endpoint error")
	}
	if _, err := New(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected bucket error")
	}
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	store, fake := newTestStore(t)
	if err := store.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	if !fake.buckets["proposals"] {
		t.Fatal("bucket was not created")
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket on existing bucket: %v", err)
	}
}

func TestPutUploadsObject(t *testing.T) {
	store, fake := newTestStore(t)
	fake.buckets["proposals"] = true

	ref, err := store.Put(context.Background(), "ws_1/Proposal_Automation_1.pdf", "application/pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "s3://proposals/ws_1/Proposal_Automation_1.pdf" {
		t.Errorf("ref = %q", ref)
	}
	// the body may arrive aws-chunked over plain http
	if got := string(fake.objects["proposals/ws_1/Proposal_Automation_1.pdf"]); !strings.Contains(got, "%PDF-1.4") {
		t.Errorf("stored body = %q", got)
	}
	if got := fake.types["proposals/ws_1/Proposal_Automation_1.pdf"]; got != "application/pdf" {
		t.Errorf("content type = %q", got)
	}
}
