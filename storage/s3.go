package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// S3Store keeps auth contexts as private objects in an S3 or S3 compatible bucket.
type S3Store struct {
	client     *s3.S3
	bucketName string
	prefix     string
	log        *slog.Logger
}

// S3Options configures an S3Store. Without static credentials the default AWS
// credential chain (environment, shared config, instance role) is used.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Store creates an S3 backed session store.
func NewS3Store(opts S3Options, log *slog.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, interfaces.ConfigError("s3 bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	cfg := aws.Config{
		Region: aws.String(opts.Region),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:     s3.New(sess),
		bucketName: opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		log:        log,
	}, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

// Load reads the auth context stored under name.
func (s *S3Store) Load(ctx context.Context, name string) (*interfaces.AuthContext, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	start := time.Now()
	key := s.objectKey(name)

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, interfaces.ErrSessionKeyNotFound
		}
		s.log.Error("Failed to get object from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.log.Debug("Loaded session from S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)))

	return decodeAuthContext(data)
}

// Store uploads auth under name with a private ACL.
func (s *S3Store) Store(ctx context.Context, name string, auth *interfaces.AuthContext) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := encodeAuthContext(auth)
	if err != nil {
		return err
	}

	key := s.objectKey(name)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String(s3.ObjectCannedACLPrivate),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	s.log.Debug("Stored session in S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", key))
	return nil
}

// Available heads the bucket.
func (s *S3Store) Available(ctx context.Context) bool {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		s.log.Warn("S3 store unavailable", slog.String("bucket", s.bucketName), "err", err)
		return false
	}
	return true
}

func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

func (s *S3Store) objectKey(name string) string {
	key := path.Join("sessions", name+".json")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
