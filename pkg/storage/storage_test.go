package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "certificates/a.pdf", []byte("pdf"), "application/pdf"))
	rc, err := store.Get(ctx, "certificates/a.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "pdf", string(body))

	require.NoError(t, store.Delete(ctx, "certificates/a.pdf"))
	_, err = store.Get(ctx, "certificates/a.pdf")
	require.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.Put(context.Background(), "../escape.pdf", []byte("x"), "application/pdf"))
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[*in.Key]))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoragePrefixesKeys(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	store := newS3Storage(client, "bucket", "documents")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "statements/s.pdf", []byte("pdf"), "application/pdf"))
	_, ok := client.objects["documents/statements/s.pdf"]
	assert.True(t, ok)

	rc, err := store.Get(ctx, "statements/s.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "pdf", string(body))

	require.NoError(t, store.Delete(ctx, "statements/s.pdf"))
	assert.Empty(t, client.objects)
}
