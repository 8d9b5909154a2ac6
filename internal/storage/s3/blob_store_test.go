package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	putter := &fakePutter{}
	store, err := NewWithClient(putter, Config{
		Bucket:   "jobs",
		Metadata: map[string]string{"source": "jobscallme", "upload_date": "20240501"},
	})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "/20240501/a-001.json", "application/json", strings.NewReader(`{"job_title":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, "s3://jobs/20240501/a-001.json", uri)
	assert.Equal(t, "jobs", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "20240501/a-001.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "jobscallme", putter.input.Metadata["source"])
	assert.Equal(t, `{"job_title":"x"}`, putter.body)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store, err := NewWithClient(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "jobs"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "a.json", "application/json", strings.NewReader("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	_, err = store.PutObject(context.Background(), "  ", "application/json", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = NewWithClient(nil, Config{Bucket: "jobs"})
	assert.Error(t, err)

	_, err = NewWithClient(&fakePutter{}, Config{})
	assert.Error(t, err)
}

func TestNewBuildsR2Client(t *testing.T) {
	t.Parallel()

	store, err := New(context.Background(), Config{
		Bucket:          "jobs",
		AccountID:       "abc123",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	_, ok := store.client.(*s3.Client)
	assert.True(t, ok)
	assert.Equal(t, "jobs", store.bucket)
}
