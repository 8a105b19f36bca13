package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	payload := []byte("<html></html>")
	uri, err := blobs.PutObject(context.Background(), "checks/1/2.html", "text/html", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://checks/1/2.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'X'
	stored, ok := blobs.Object("checks/1/2.html")
	if !ok || string(stored) != "<html></html>" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	stored[0] = 'Y'
	again, _ := blobs.Object("checks/1/2.html")
	if string(again) != "<html></html>" {
		t.Fatal("expected Object to return a copy")
	}
	if blobs.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", blobs.Len())
	}
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty path")
	}
}
