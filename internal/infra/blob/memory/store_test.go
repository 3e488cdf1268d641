package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"inventorycore/internal/blob/core"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetNowFunc(func() time.Time { return at })
	ctx := context.Background()
	meta := map[string]string{"record": "SA1"}
	info, err := s.Put(ctx, "attachments/SA1/a.txt", bytes.NewBufferString("hi"), core.PutOptions{ContentType: "text/plain", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["record"] = "mutated"
	if info.Size != 2 || info.ETag == "" || !info.LastModified.Equal(at) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "attachments/SA1/a.txt", bytes.NewBufferString("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, "attachments/SA1/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hi" || got.Metadata["record"] != "SA1" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	got.Metadata["record"] = "leak"
	head, err := s.Head(ctx, "attachments/SA1/a.txt")
	if err != nil || head.Metadata["record"] != "SA1" {
		t.Fatalf("metadata leaked through Get: %+v %v", head, err)
	}
	if _, err := s.PresignURL(ctx, "attachments/SA1/a.txt", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if ok, err := s.Delete(ctx, "attachments/SA1/a.txt"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "attachments/SA1/a.txt"); ok {
		t.Fatalf("second delete must report false")
	}
	if _, err := s.Head(ctx, "attachments/SA1/a.txt"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

func TestMemoryStoreListPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, k := range []string{"b/2", "a/1", "b/1"} {
		if _, err := s.Put(ctx, k, bytes.NewReader(nil), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := s.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "b/1" || list[1].Key != "b/2" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestMemoryStoreRejectsInvalidKey(t *testing.T) {
	s := New()
	if _, err := s.Put(context.Background(), "../x", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStoreConcurrentPuts(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(ctx, "same", bytes.NewReader([]byte("x")), core.PutOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, core.ErrExists) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful put, got %d", ok)
	}
}
