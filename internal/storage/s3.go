package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"server/internal/domain"
)

// S3Options configures the S3-backed store. Endpoint is optional and
// allows pointing at MinIO or another S3-compatible service.
type S3Options struct {
	Region     string
	Bucket     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BasePrefix string
	LinkTTL    time.Duration
}

// S3Store persists assets in an S3 bucket under a configurable prefix.
// Folders are implicit: EnsureFolder is a no-op and listing works on key
// prefixes.
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	basePrefix string
	linkTTL    time.Duration
}

// NewS3Store builds the S3 client from static credentials when provided,
// falling back to the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := opts.LinkTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     opts.Bucket,
		basePrefix: strings.Trim(opts.BasePrefix, "/"),
		linkTTL:    ttl,
	}, nil
}

func (s *S3Store) key(path string) (string, error) {
	clean, err := sanitizeKey(path)
	if err != nil {
		return "", err
	}
	if s.basePrefix == "" {
		return clean, nil
	}
	return s.basePrefix + "/" + clean, nil
}

// EnsureFolder is a no-op: S3 has no folder concept beyond key prefixes.
func (s *S3Store) EnsureFolder(ctx context.Context, path string) error {
	return ctx.Err()
}

// UploadBytes writes data at path, overwriting any existing object.
func (s *S3Store) UploadBytes(ctx context.Context, path string, data []byte) (Artifact, error) {
	return s.put(ctx, path, data, "application/octet-stream")
}

// UploadImage writes image bytes with a sniffed content type so issued
// links render inline.
func (s *S3Store) UploadImage(ctx context.Context, path string, data []byte) (Artifact, error) {
	return s.put(ctx, path, data, http.DetectContentType(data))
}

func (s *S3Store) put(ctx context.Context, path string, data []byte, contentType string) (Artifact, error) {
	key, err := s.key(path)
	if err != nil {
		return Artifact{}, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: put %s: %v", domain.ErrStorageFailure, path, err)
	}
	clean, _ := sanitizeKey(path)
	return Artifact{Path: clean}, nil
}

// DownloadBytes reads the object at path.
func (s *S3Store) DownloadBytes(ctx context.Context, path string) ([]byte, error) {
	key, err := s.key(path)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrStorageFailure, path, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageFailure, path, err)
	}
	return data, nil
}

// DeletePath removes the object at path and every object below it.
// Missing paths are treated as already deleted.
func (s *S3Store) DeletePath(ctx context.Context, path string) error {
	key, err := s.key(path)
	if err != nil {
		return err
	}

	// Delete the exact key plus any children sharing the prefix.
	prefixes := []string{key, key + "/"}
	for _, prefix := range prefixes {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("%w: list for delete %s: %v", domain.ErrStorageFailure, path, err)
			}
			if len(page.Contents) == 0 {
				break
			}
			objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				if prefix == key && aws.ToString(obj.Key) != key {
					continue
				}
				objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
			}
			if len(objects) == 0 {
				continue
			}
			_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("%w: delete %s: %v", domain.ErrStorageFailure, path, err)
			}
		}
	}
	return nil
}

// ListPaths returns the immediate children of folder: common prefixes for
// subtrees and keys for direct objects.
func (s *S3Store) ListPaths(ctx context.Context, folder string) ([]string, error) {
	key, err := s.key(folder)
	if err != nil {
		return nil, err
	}
	prefix := key + "/"

	var paths []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStorageFailure, folder, err)
		}
		for _, common := range page.CommonPrefixes {
			paths = append(paths, s.stripBase(strings.TrimSuffix(aws.ToString(common.Prefix), "/")))
		}
		for _, obj := range page.Contents {
			paths = append(paths, s.stripBase(aws.ToString(obj.Key)))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *S3Store) stripBase(key string) string {
	if s.basePrefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.basePrefix+"/")
}

// TemporaryLink issues a presigned GET URL valid for the configured TTL.
func (s *S3Store) TemporaryLink(ctx context.Context, path string) (string, error) {
	key, err := s.key(path)
	if err != nil {
		return "", err
	}
	// Presigning does not touch the object, so probe first to keep the
	// NotFound contract.
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: head %s: %v", domain.ErrStorageFailure, path, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", domain.ErrStorageFailure, path, err)
	}
	return req.URL, nil
}

var _ Store = (*S3Store)(nil)
