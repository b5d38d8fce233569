package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

// DefaultS3Prefix is the key prefix snapshots are stored under.
const DefaultS3Prefix = "sessions/"

// S3API is the subset of *s3.Client used by S3Repository.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures NewS3Client.
type S3Options struct {
	// Endpoint overrides the AWS endpoint, e.g.
	// https://<account>.r2.cloudflarestorage.com for Cloudflare R2.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. Static credentials are used when an
// access key is given; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, jherrors.NewConfigError("error creating aws config", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Repository stores one object per snapshot under a key prefix. It works
// with AWS S3 and S3 compatible stores such as Cloudflare R2.
type S3Repository struct {
	client   S3API
	bucket   string
	prefix   string
	compress bool
}

var _ Repository = (*S3Repository)(nil)

// NewS3Repository stores objects in bucket under DefaultS3Prefix.
func NewS3Repository(client S3API, bucket string, compress bool) *S3Repository {
	return &S3Repository{client: client, bucket: bucket, prefix: DefaultS3Prefix, compress: compress}
}

// Save uploads the snapshot and removes a copy stored in the other format.
func (r *S3Repository) Save(ctx context.Context, id string, snap *state.Snapshot) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	data, err := marshal(snap)
	if err != nil {
		return err
	}
	ext, stale, contentType := extJSON, extZstd, "application/json"
	if r.compress {
		data = zstdEncoder.EncodeAll(data, nil)
		ext, stale, contentType = extZstd, extJSON, "application/zstd"
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key(id, ext)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload session '%s': %w", id, err)
	}
	if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id, stale)),
	}); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove stale copy of session '%s': %w", id, err)
	}
	return nil
}

// Load downloads a snapshot in either format.
func (r *S3Repository) Load(ctx context.Context, id string) (*state.Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	for _, ext := range r.lookupOrder() {
		data, err := r.download(ctx, r.key(id, ext))
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to download session '%s': %w", id, err)
		}
		if ext == extZstd {
			if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
				return nil, fmt.Errorf("failed to decompress session '%s': %w", id, err)
			}
		}
		return unmarshal(data)
	}
	return nil, jherrors.NewSnapshotNotFoundError(id)
}

// List returns the stored sessions, most recently saved first.
func (r *S3Repository) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), r.prefix)
			id, ok := trimExt(name)
			if !ok || strings.Contains(id, "/") {
				continue
			}
			info := Info{ID: id, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.SavedAt = obj.LastModified.UTC()
			}
			infos = append(infos, info)
		}
	}
	sortInfos(infos)
	return infos, nil
}

// Delete removes every stored form of the snapshot. S3 deletes are
// idempotent, so existence is checked first.
func (r *S3Repository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	removed := false
	for _, ext := range []string{extJSON, extZstd} {
		key := r.key(id, ext)
		_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)})
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to delete session '%s': %w", id, err)
		}
		if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)}); err != nil {
			return fmt.Errorf("failed to delete session '%s': %w", id, err)
		}
		removed = true
	}
	if !removed {
		return jherrors.NewSnapshotNotFoundError(id)
	}
	return nil
}

func (r *S3Repository) download(ctx context.Context, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *S3Repository) lookupOrder() []string {
	if r.compress {
		return []string{extZstd, extJSON}
	}
	return []string{extJSON, extZstd}
}

func (r *S3Repository) key(id, ext string) string {
	return r.prefix + id + ext
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
