package s3

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"inventorycore/internal/blob/core"
)

func TestStoreMockedBasicFlow(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	key := "attachments/SS1/notes.txt"
	info, err := store.Put(ctx, key, bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"record": "SS1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != key || info.ContentType != "text/plain" || info.Size != 5 || info.ETag != "etag123" {
		t.Fatalf("unexpected info %#v", info)
	}
	if len(info.Metadata) != 1 {
		t.Fatalf("expected metadata round trip, got %v", info.Metadata)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("ignored")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Fatalf("get mismatch: %q", data)
	}
	u, err := store.PresignURL(ctx, key, core.SignedURLOptions{Expiry: 30 * time.Second})
	if err != nil || !strings.Contains(u, "X-Amz-Expires=30") {
		t.Fatalf("presign: %v %s", err, u)
	}
	if ok, err := store.Delete(ctx, key); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, key); err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
}

func TestStoreHeadAndGetReportETag(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	key := "attachments/SA1/plate.csv"
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("a,b")), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := store.Head(ctx, key)
	if err != nil || info.ETag != "etag123" {
		t.Fatalf("head etag: %v %#v", err, info)
	}
	got, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = rc.Close()
	if got.ETag != "etag123" {
		t.Fatalf("get etag: %#v", got)
	}
}

// writeCABundle writes a self-signed certificate as a PEM bundle.
func writeCABundle(t *testing.T) string {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "inventorycore test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestNewWithCABundleKeepsCustomHTTPClient(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_CA_BUNDLE", writeCABundle(t))

	ctx := context.Background()
	store, err := New(ctx, Config{
		Bucket:          "lab-bucket",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: newFakeBucket(2)},
	})
	if err != nil {
		t.Fatalf("new with CA bundle: %v", err)
	}
	if _, err := store.Put(ctx, "attachments/IC1/label.txt", bytes.NewReader([]byte("rack")), core.PutOptions{}); err != nil {
		t.Fatalf("put through custom client: %v", err)
	}
}

func TestStoreMissingKeysMapToNotFound(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.PresignURL(ctx, "nope", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if _, err := store.Put(ctx, "../x", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStoreListPaginates(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for _, k := range []string{"attachments/SA1/c", "attachments/SA1/a", "attachments/SA1/b", "attachments/SA2/a"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "attachments/SA1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "attachments/SA1/a" || list[2].Key != "attachments/SA1/c" {
		t.Fatalf("unexpected list %+v", list)
	}
	if empty, err := store.List(ctx, "none/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, empty)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	s, err := New(context.Background(), Config{Bucket: "bkt", AccessKeyID: "AKIA", SecretAccessKey: "SECRET", Endpoint: "https://mock.s3.local", PathStyle: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 || s.Bucket() != "bkt" {
		t.Fatalf("unexpected store %s %s", s.Driver(), s.Bucket())
	}
}

func TestFakeBucketUnsupportedMethod(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := newFakeBucket(0).RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}

func TestDecodeChunked(t *testing.T) {
	if _, ok := decodeChunked([]byte("not-chunked")); ok {
		t.Fatalf("expected failure for unframed body")
	}
	if _, ok := decodeChunked([]byte("9\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("short chunk should fail")
	}
	b, ok := decodeChunked([]byte("5;chunk-signature=x\r\nhello\r\n1\r\n!\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	if !ok || string(b) != "hello!" {
		t.Fatalf("expected hello!, got %q %v", b, ok)
	}
}
