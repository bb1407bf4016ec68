package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/filedock/go-file-backend/internal/config"
	"github.com/filedock/go-file-backend/internal/domain"
)

// S3Store implements ObjectStore on an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the S3 client from static credentials, honoring an
// optional custom endpoint for MinIO/R2-style services. A missing bucket
// binding is a configuration error.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, domain.E(domain.KindConfiguration, "object backend requires S3_BUCKET", nil)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, domain.E(domain.KindConfiguration, "load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes data under key with the declared content type.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return domain.E(domain.KindUpstream, fmt.Sprintf("s3 put %s", key), err)
	}
	return nil
}

// Get returns the object body and content type, or a KindNotFound error on
// a missing key.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", domain.E(domain.KindNotFound, fmt.Sprintf("s3 object %s", key), err)
		}
		return nil, "", domain.E(domain.KindUpstream, fmt.Sprintf("s3 get %s", key), err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

// Copy duplicates srcKey under dstKey within the bucket.
func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return domain.E(domain.KindUpstream, fmt.Sprintf("s3 copy %s -> %s", srcKey, dstKey), err)
	}
	return nil
}

// Delete removes key. S3 treats deleting a missing key as success, which
// matches the interface contract.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.E(domain.KindUpstream, fmt.Sprintf("s3 delete %s", key), err)
	}
	return nil
}
