package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"catalystbot/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config contains minimal configuration for the session archive.
// Region and Profile are optional and fall back to the standard AWS chain.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "sessions/".
	Prefix string
	// Region to use for requests, e.g. "us-east-1".
	Region string
	// Profile selects a named shared config/credentials profile.
	Profile string
	// UsePathStyle forces path-style addressing (MinIO and other S3-compatible stores).
	UsePathStyle bool
}

// objectAPI is the slice of the S3 client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 stores finished session snapshots as JSON objects.
type S3 struct {
	client objectAPI
	bucket string
	prefix string
}

// NewS3 creates the archive using the default AWS configuration chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 archive: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{client: c, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// SessionKey is the object key for a session id.
func (s *S3) SessionKey(id string) string {
	return path.Join(s.prefix, id+".json")
}

// Archive uploads the session snapshot, overwriting any earlier copy.
func (s *S3) Archive(ctx context.Context, session types.AnalysisSession) error {
	body, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	key := s.SessionKey(session.ID)
	if err := s.put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// LoadSession reads an archived snapshot back.
func (s *S3) LoadSession(ctx context.Context, id string) (types.AnalysisSession, error) {
	var session types.AnalysisSession
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.SessionKey(id)),
	})
	if err != nil {
		return session, err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return session, err
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return session, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

// Exists returns true if the session was archived; false on 404/NotFound.
func (s *S3) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.SessionKey(id)),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	return false, err
}

func (s *S3) put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}
