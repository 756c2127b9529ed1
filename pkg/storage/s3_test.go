package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func notFound(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "not found"}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, notFound("NotFound")
	}
	return &s3.HeadObjectOutput{}, nil
}

func newTestStorage(client *fakeS3) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: "taiso-gpx",
		presign: func(ctx context.Context, input *s3.GetObjectInput, expiry time.Duration) (string, error) {
			return "https://taiso-gpx.s3.example.com/" + aws.ToString(input.Key) + "?X-Amz-Expires=" + expiry.String(), nil
		},
	}
}

func TestUpload(t *testing.T) {
	client := newFakeS3()
	store := newTestStorage(client)
	ctx := context.Background()
	payload := []byte("<gpx></gpx>")

	result, err := store.Upload(ctx, "gpx/owner/route.gpx", bytes.NewReader(payload), int64(len(payload)), "application/gpx+xml")
	require.NoError(t, err)
	assert.Equal(t, "taiso-gpx", result.Bucket)
	assert.Equal(t, `"etag-1"`, result.ETag)
	assert.Equal(t, "application/gpx+xml", client.types["gpx/owner/route.gpx"])
	assert.Equal(t, payload, client.objects["gpx/owner/route.gpx"])
}

func TestUploadFailure(t *testing.T) {
	client := newFakeS3()
	client.failPut = errors.New("access denied")

	_, err := newTestStorage(client).Upload(context.Background(), "k", bytes.NewReader(nil), 0, "text/plain")
	assert.ErrorContains(t, err, "access denied")
}

func TestExistsAndDelete(t *testing.T) {
	client := newFakeS3()
	client.objects["gpx/a.gpx"] = []byte("x")
	store := newTestStorage(client)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "gpx/a.gpx")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "gpx/a.gpx"))

	exists, err = store.Exists(ctx, "gpx/a.gpx")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetPresignedDownloadURL(t *testing.T) {
	store := newTestStorage(newFakeS3())

	result, err := store.GetPresignedDownloadURL(context.Background(), "gpx/a.gpx", 15*time.Minute)

	require.NoError(t, err)
	assert.Contains(t, result.URL, "gpx/a.gpx")
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), result.ExpiresAt, 5*time.Second)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(notFound("NoSuchKey")))
	assert.True(t, isNotFound(notFound("NotFound")))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("plain")))
}
