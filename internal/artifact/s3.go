package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// s3API is the subset of the S3 client used by the store.
// It exists so tests can substitute a mock implementation.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// Verify that the AWS S3 client implements our interface.
var _ s3API = (*s3.Client)(nil)

// S3Config configures the S3-backed artifact store.
type S3Config struct {
	// Bucket is the REQUIRED bucket name.
	Bucket string

	// Prefix is prepended to all object keys.
	Prefix string

	// Region overrides the region from the AWS credential chain.
	Region string
}

// S3Store stores artifacts as S3 objects under
// "<prefix>/<version>/<name>", with the content digest carried in object
// metadata.
type S3Store struct {
	client s3API
	fs     fsys.Filesystem
	logger *slog.Logger

	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithS3Client substitutes the S3 client, primarily for testing.
func WithS3Client(client s3API) S3Option {
	return func(s *S3Store) {
		s.client = client
	}
}

// WithS3Logger sets the logger used for store operations.
func WithS3Logger(logger *slog.Logger) S3Option {
	return func(s *S3Store) {
		s.logger = logger
	}
}

// NewS3Store creates an S3-backed store. Credentials come from the default
// AWS credential chain unless a client is injected via WithS3Client.
func NewS3Store(
	ctx context.Context,
	filesystem fsys.Filesystem,
	cfg S3Config,
	opts ...S3Option,
) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "s3 artifact store requires a bucket")
	}

	store := &S3Store{
		fs:     filesystem,
		logger: slog.Default(),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to load AWS configuration")
		}
		store.client = s3.NewFromConfig(awsCfg)
	}

	return store, nil
}

// Put uploads the file under the version key.
func (s *S3Store) Put(ctx context.Context, version, srcPath string) (*Artifact, error) {
	if version == "" {
		return nil, errors.New(errors.CodeInvalidInput, "version cannot be empty")
	}

	data, err := s.fs.ReadFile(srcPath)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to read artifact", map[string]interface{}{"path": srcPath})
	}

	name := baseName(srcPath)
	key := s.objectKey(version, name)

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	contentType := mimetype.Detect(data).String()

	s.logger.Debug("uploading artifact",
		"bucket", s.bucket,
		"key", key,
		"size", len(data),
	)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"sha256": digest,
		},
	})
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to upload artifact", map[string]interface{}{
				"bucket": s.bucket,
				"key":    key,
			})
	}

	return &Artifact{
		Name:        name,
		Key:         key,
		Size:        int64(len(data)),
		SHA256:      digest,
		ContentType: contentType,
	}, nil
}

// Get downloads the named artifact of a version to destPath.
func (s *S3Store) Get(ctx context.Context, version, name, destPath string) error {
	key := s.objectKey(version, name)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeNotFound,
			"artifact not found", map[string]interface{}{
				"bucket": s.bucket,
				"key":    key,
			})
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to read artifact body", map[string]interface{}{"key": key})
	}

	if dir := filepath.Dir(destPath); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to create destination directory", map[string]interface{}{"path": destPath})
		}
	}

	if err := s.fs.WriteFile(destPath, data, 0o644); err != nil {
		return errors.WrapWithContext(err, errors.CodeStorageFailed,
			"failed to write artifact", map[string]interface{}{"path": destPath})
	}
	return nil
}

// List returns the artifacts stored under a version. Digests are not
// populated; they live in per-object metadata and would require one request
// per object.
func (s *S3Store) List(ctx context.Context, version string) ([]Artifact, error) {
	keyPrefix := s.objectKey(version, "") + "/"

	var artifacts []Artifact
	var continuation *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(keyPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeStorageFailed,
				"failed to list artifacts", map[string]interface{}{
					"bucket": s.bucket,
					"prefix": keyPrefix,
				})
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			artifacts = append(artifacts, Artifact{
				Name: path.Base(key),
				Key:  key,
				Size: aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}

	return artifacts, nil
}

// objectKey builds the object key for a version and artifact name.
// S3 keys always use forward slashes.
func (s *S3Store) objectKey(version, name string) string {
	parts := []string{}
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, version)
	if name != "" {
		parts = append(parts, name)
	}
	return path.Join(parts...)
}
