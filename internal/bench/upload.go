package bench

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vango-dev/statelift/internal/errors"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Target is a parsed s3://bucket/prefix location.
type Target struct {
	Bucket string
	Prefix string
}

// String returns the target in s3:// form.
func (t Target) String() string {
	if t.Prefix == "" {
		return "s3://" + t.Bucket
	}
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// ParseTarget parses an upload target of the form s3://bucket/prefix.
// The prefix is optional.
func ParseTarget(raw string) (Target, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Target{}, errors.New("SL300").WithDetail("got " + raw)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Target{}, errors.New("SL300").WithDetail("missing bucket in " + raw)
	}
	return Target{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// PutObjectAPI is the part of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadOptions configures NewUploader.
type UploadOptions struct {
	// Region defaults to DefaultRegion.
	Region string

	// Endpoint points the client at an S3 compatible service (MinIO,
	// localstack). Path-style addressing is used when set.
	Endpoint string

	// Credentials default to the AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
	// and AWS_SESSION_TOKEN environment variables.
	Credentials aws.CredentialsProvider

	Logger *slog.Logger
}

// Uploader stores reports in S3.
type Uploader struct {
	client PutObjectAPI
	target Target
	logger *slog.Logger
}

// NewUploader creates an uploader for target, building its S3 client from
// opts.
func NewUploader(target string, opts UploadOptions) (*Uploader, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.Credentials == nil {
		opts.Credentials = aws.CredentialsProviderFunc(envCredentials)
	}

	client := s3.New(s3.Options{
		Region:      opts.Region,
		Credentials: aws.NewCredentialsCache(opts.Credentials),
	}, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewUploaderWithClient(client, t, opts.Logger), nil
}

// NewUploaderWithClient creates an uploader around an existing client.
func NewUploaderWithClient(client PutObjectAPI, target Target, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, target: target, logger: logger}
}

// Target returns the upload location.
func (u *Uploader) Target() Target {
	return u.target
}

// Key returns the object key a report is stored under.
func (u *Uploader) Key(r *Report) string {
	name := fmt.Sprintf("%s-%s-%s.json",
		r.Store,
		r.Run.Timestamp.UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
	if u.target.Prefix == "" {
		return name
	}
	return path.Join(u.target.Prefix, name)
}

// Upload stores the report as JSON and returns its s3:// location.
func (u *Uploader) Upload(ctx context.Context, r *Report) (string, error) {
	body, err := r.JSON()
	if err != nil {
		return "", errors.New("SL301").Wrap(err)
	}

	key := u.Key(r)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.target.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"store":      r.Store,
			"go-version": r.Run.Go,
		},
	})
	if err != nil {
		return "", errors.New("SL301").
			WithDetailf("s3://%s/%s", u.target.Bucket, key).
			Wrap(err)
	}

	location := "s3://" + u.target.Bucket + "/" + key
	u.logger.Info("bench report uploaded", "location", location, "bytes", len(body))
	return location, nil
}

func envCredentials(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("SL301").
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are not set")
	}
	return creds, nil
}
