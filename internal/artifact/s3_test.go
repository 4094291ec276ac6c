package artifact

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// mockS3 implements s3API and records the requests it receives.
type mockS3 struct {
	putInputs  []*s3.PutObjectInput
	putBodies  []string
	getOutput  *s3.GetObjectOutput
	getErr     error
	listOutput []*s3.ListObjectsV2Output
	listCalls  int
}

func (m *mockS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	m.putInputs = append(m.putInputs, params)
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.putBodies = append(m.putBodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getOutput, nil
}

func (m *mockS3) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	out := m.listOutput[m.listCalls]
	m.listCalls++
	return out, nil
}

func newS3Store(t *testing.T, mock *mockS3) (*S3Store, fsys.Filesystem) {
	t.Helper()

	fs := fsys.NewInMemoryFS()
	store, err := NewS3Store(context.Background(), fs, S3Config{
		Bucket: "hydra-artifacts",
		Prefix: "hydra-release",
	}, WithS3Client(mock))
	require.NoError(t, err)

	return store, fs
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), fsys.NewInMemoryFS(), S3Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidConfig))
}

func TestS3Put(t *testing.T) {
	mock := &mockS3{}
	store, fs := newS3Store(t, mock)

	require.NoError(t, fs.WriteFile("dist/pkg.whl", []byte("wheel bytes"), 0o644))

	art, err := store.Put(context.Background(), "1.2.1.dev447", "dist/pkg.whl")
	require.NoError(t, err)

	require.Len(t, mock.putInputs, 1)
	input := mock.putInputs[0]

	assert.Equal(t, "hydra-artifacts", aws.ToString(input.Bucket))
	assert.Equal(t, "hydra-release/1.2.1.dev447/pkg.whl", aws.ToString(input.Key))
	assert.Equal(t, "wheel bytes", mock.putBodies[0])
	assert.Equal(t, int64(len("wheel bytes")), aws.ToInt64(input.ContentLength))
	assert.Equal(t, art.SHA256, input.Metadata["sha256"])
	assert.NotEmpty(t, aws.ToString(input.ContentType))

	assert.Equal(t, "pkg.whl", art.Name)
	assert.Equal(t, "hydra-release/1.2.1.dev447/pkg.whl", art.Key)
}

func TestS3Get(t *testing.T) {
	mock := &mockS3{
		getOutput: &s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader("downloaded bytes")),
		},
	}
	store, fs := newS3Store(t, mock)

	require.NoError(t, store.Get(context.Background(), "2.0.0", "pkg.whl", "download/pkg.whl"))

	data, err := fs.ReadFile("download/pkg.whl")
	require.NoError(t, err)
	assert.Equal(t, "downloaded bytes", string(data))
}

func TestS3Get_NotFound(t *testing.T) {
	mock := &mockS3{getErr: io.ErrUnexpectedEOF}
	store, _ := newS3Store(t, mock)

	err := store.Get(context.Background(), "2.0.0", "pkg.whl", "download/pkg.whl")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestS3List_Paginates(t *testing.T) {
	now := time.Now()
	mock := &mockS3{
		listOutput: []*s3.ListObjectsV2Output{
			{
				Contents: []types.Object{
					{
						Key:          aws.String("hydra-release/1.0.0/a.whl"),
						Size:         aws.Int64(11),
						LastModified: aws.Time(now),
					},
				},
				IsTruncated:           aws.Bool(true),
				NextContinuationToken: aws.String("next"),
			},
			{
				Contents: []types.Object{
					{
						Key:  aws.String("hydra-release/1.0.0/b.tar.gz"),
						Size: aws.Int64(22),
					},
				},
				IsTruncated: aws.Bool(false),
			},
		},
	}
	store, _ := newS3Store(t, mock)

	artifacts, err := store.List(context.Background(), "1.0.0")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, 2, mock.listCalls, "expected pagination to follow the continuation token")

	assert.Equal(t, "a.whl", artifacts[0].Name)
	assert.Equal(t, int64(11), artifacts[0].Size)
	assert.Equal(t, "b.tar.gz", artifacts[1].Name)
}
