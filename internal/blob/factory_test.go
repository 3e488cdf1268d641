package blob

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")

	fsStore, err := Open(ctx, Config{FSRoot: root})
	require.NoError(t, err)
	require.Equal(t, DriverFilesystem, fsStore.Driver())

	memStore, err := Open(ctx, Config{Driver: DriverMemory})
	require.NoError(t, err)
	require.Equal(t, DriverMemory, memStore.Driver())

	s3Store, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "bkt", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}})
	require.NoError(t, err)
	require.Equal(t, DriverS3, s3Store.Driver())

	_, err = Open(ctx, Config{Driver: DriverS3})
	require.Error(t, err)
	_, err = Open(ctx, Config{Driver: "tape"})
	require.ErrorContains(t, err, "unknown blob driver")
}

func TestStoresShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	stores := map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			key := "attachments/SA1/protocol.pdf"
			_, err := store.Put(ctx, key, bytes.NewReader([]byte("%PDF")), PutOptions{ContentType: "application/pdf"})
			require.NoError(t, err)
			_, err = store.Put(ctx, key, bytes.NewReader([]byte("again")), PutOptions{})
			require.True(t, errors.Is(err, ErrExists), "got %v", err)

			info, rc, err := store.Get(ctx, key)
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			require.Equal(t, "%PDF", string(body))
			require.Equal(t, "application/pdf", info.ContentType)

			list, err := store.List(ctx, "attachments/SA1/")
			require.NoError(t, err)
			require.Len(t, list, 1)

			_, err = store.Head(ctx, "attachments/SA1/missing")
			require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			ok, err := store.Delete(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}
