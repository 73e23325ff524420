package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorePrefixesKeys(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3Store(fake, "notes", "/uploads/", "", "http://minio:9000")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "doc.pdf", bytes.NewReader([]byte("pdf")), 3))
	require.Contains(t, fake.objects, "uploads/doc.pdf")
	require.Equal(t, "http://minio:9000/notes/uploads/doc.pdf", store.URL("doc.pdf", ""))

	path, cleanup, err := store.Fetch(ctx, "doc.pdf")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "pdf", string(data))
	cleanup()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(ctx, "doc.pdf"))
	_, err = store.Open(ctx, "doc.pdf")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestS3StoreRejectsPathKeys(t *testing.T) {
	store := newS3Store(&fakeS3{objects: map[string][]byte{}}, "b", "", "https://cdn", "http://minio")
	require.ErrorIs(t, store.Save(context.Background(), "a/b", bytes.NewReader(nil), 0), ErrInvalidKey)
	require.Equal(t, "https://cdn/x.txt", store.URL("x.txt", ""))
}
