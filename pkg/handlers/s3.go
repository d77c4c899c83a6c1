package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

var s3Schema = configSchema(map[string]any{
	"bucket":            map[string]any{"type": "string", "minLength": 1},
	"region":            map[string]any{"type": "string", "minLength": 1},
	"prefix":            map[string]any{"type": "string"},
	"endpoint":          map[string]any{"type": "string", "minLength": 1},
	"access_key_id":     map[string]any{"type": "string"},
	"secret_access_key": map[string]any{"type": "string"},
	"force_path_style":  map[string]any{"type": "boolean"},
}, "bucket", "region")

// S3Putter is the part of *s3.Client the s3 sink uses.
type S3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores each record as a JSON object.
type S3Sink struct {
	client S3Putter
	bucket string
	prefix string
}

func NewS3Sink(client S3Putter, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a record: <prefix><type>/<id>.json.
func (s *S3Sink) Key(rec Record) string {
	return s.prefix + rec.JobType + "/" + strconv.FormatUint(rec.JobID, 10) + ".json"
}

func (s *S3Sink) Write(ctx context.Context, rec Record) error {
	data, err := rec.JSON()
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.Key(rec)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (s *S3Sink) Close(context.Context) error {
	return nil
}

// S3Config holds the connection options of the s3 handler.
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKeyID    string
	SecretKey      string
	ForcePathStyle bool
}

// NewS3Client builds an S3 client from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// S3 archives every job record as <prefix><type>/<id>.json in "bucket".
func S3(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, s3Schema, logger)
	if err != nil {
		return nil, err
	}

	cfg := S3Config{
		Bucket:         opts.String("bucket", ""),
		Region:         opts.String("region", ""),
		Endpoint:       opts.String("endpoint", ""),
		AccessKeyID:    opts.String("access_key_id", ""),
		SecretKey:      opts.String("secret_access_key", ""),
		ForcePathStyle: opts.Bool("force_path_style", false),
	}
	prefix := opts.String("prefix", "")

	open := func(ctx context.Context) (Sink, error) {
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Sink(client, cfg.Bucket, prefix), nil
	}
	return NewSinkHandler(base, open, failureVerdict(opts)), nil
}
