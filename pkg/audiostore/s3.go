package audiostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 calls used by [S3]. The [s3.Client] type
// satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET URLs. The [s3.PresignClient] type satisfies this
// interface.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3 store.
type S3Options struct {
	Bucket string
	// Prefix is prepended to object keys.
	Prefix string
	// TTL is the lifetime of presigned URLs. Zero means DefaultTTL.
	TTL time.Duration
	// PublicBaseURL, when set, is used instead of presigning: the clip
	// URL is PublicBaseURL + "/" + key. Use it for public buckets or a CDN.
	PublicBaseURL string
}

// S3 stores clips in Amazon S3 or an S3-compatible service.
type S3 struct {
	client    S3Client
	presigner Presigner
	opts      S3Options
}

var _ Store = (*S3)(nil)

// NewS3 creates an S3 store. presigner may be nil only when
// opts.PublicBaseURL is set.
func NewS3(client S3Client, presigner Presigner, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("audiostore: s3 bucket is required")
	}
	if presigner == nil && opts.PublicBaseURL == "" {
		return nil, errors.New("audiostore: s3 needs a presigner or a public base url")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &S3{client: client, presigner: presigner, opts: opts}, nil
}

// S3ClientOptions describes how to reach the bucket.
type S3ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle addresses buckets as endpoint/bucket, as MinIO expects.
	PathStyle bool
}

// NewS3Client builds an S3 client with static credentials.
func NewS3Client(o S3ClientOptions) *s3.Client {
	opts := s3.Options{
		Region:       o.Region,
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, "")),
		UsePathStyle: o.PathStyle,
	}
	if o.Endpoint != "" {
		opts.BaseEndpoint = aws.String(o.Endpoint)
	}
	return s3.New(opts)
}

func (s *S3) key(k string) string {
	if s.opts.Prefix == "" {
		return k
	}
	return s.opts.Prefix + "/" + k
}

// Put uploads data and returns a URL valid for the configured TTL.
func (s *S3) Put(ctx context.Context, data []byte, contentType string) (Object, error) {
	key := s.key(newKey(contentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String(fmt.Sprintf("private, max-age=%d", int(s.opts.TTL.Seconds()))),
	})
	if err != nil {
		return Object{}, &StorageError{Backend: "s3", Key: key, Err: describeS3(err)}
	}

	if s.opts.PublicBaseURL != "" {
		return Object{Key: key, URL: s.opts.PublicBaseURL + "/" + escapeKey(key), TTL: s.opts.TTL}, nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.opts.TTL))
	if err != nil {
		return Object{}, &StorageError{Backend: "s3", Key: key, Err: err}
	}
	return Object{Key: key, URL: req.URL, TTL: s.opts.TTL}, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// describeS3 keeps the service error code visible in logs.
func describeS3(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &s3Error{code: apiErr.ErrorCode(), err: err}
	}
	return err
}

type s3Error struct {
	code string
	err  error
}

func (e *s3Error) Error() string { return e.code + ": " + e.err.Error() }
func (e *s3Error) Unwrap() error { return e.err }
