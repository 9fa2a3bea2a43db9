package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutStatDelete(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "/static/")
	ctx := context.Background()

	_, err := store.Stat(ctx, "users/1/avatar.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "users/1/avatar.jpg", strings.NewReader("hello"), "image/jpeg"))
	info, err := store.Stat(ctx, "users/1/avatar.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.ModTime.IsZero())

	raw, err := os.ReadFile(filepath.Join(root, "users", "1", "avatar.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))

	require.NoError(t, store.Put(ctx, "users/1/avatar.jpg", strings.NewReader("replaced"), "image/jpeg"))
	info, err = store.Stat(ctx, "users/1/avatar.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)

	require.NoError(t, store.Delete(ctx, "users/1/avatar.jpg"))
	require.NoError(t, store.Delete(ctx, "users/1/avatar.jpg"), "deleting twice is fine")
	_, err = store.Stat(ctx, "users/1/avatar.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreKeysStayInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "media")
	store := NewLocalStore(root, "/static")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "../../escape.txt", strings.NewReader("x"), "text/plain"))
	_, err := os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)

	assert.ErrorIs(t, store.Put(ctx, "/", strings.NewReader("x"), ""), ErrInvalidInput)
}

func TestLocalStoreURL(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/static/")
	assert.Equal(t, "/static/moments/a.jpg", store.URL("moments/a.jpg"))
	assert.Equal(t, "/static/moments/a.jpg", store.URL(`moments\a.jpg`))
	assert.Equal(t, "/static/a.jpg", store.URL("/../a.jpg"))
}

type fakeS3 struct {
	puts    map[string]string
	deleted []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := f.puts[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	mod := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &s3.HeadObjectOutput{LastModified: &mod, ContentLength: aws.Int64(int64(len(body)))}, nil
}

func TestS3Store(t *testing.T) {
	api := &fakeS3{}
	store := &S3Store{client: api, bucket: "baby", publicURL: "https://cdn.example.com"}
	ctx := context.Background()

	_, err := store.Stat(ctx, "users/1/cover.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "/users/1/cover.jpg", strings.NewReader("jpeg"), "image/jpeg"))
	assert.Equal(t, "jpeg", api.puts["users/1/cover.jpg"])

	info, err := store.Stat(ctx, "users/1/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, 2024, info.ModTime.Year())

	require.NoError(t, store.Delete(ctx, "users/1/cover.jpg"))
	assert.Equal(t, []string{"users/1/cover.jpg"}, api.deleted)
	assert.Equal(t, "https://cdn.example.com/users/1/cover.jpg", store.URL("users/1/cover.jpg"))
}
