package archive

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the subset of *s3.Client the store uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes images to an S3 bucket.
type S3Store struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Store returns a store writing to bucket under prefix
// (e.g., "lens/received/").
func NewS3Store(client putObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Save uploads obj with its metadata as object metadata.
func (s *S3Store) Save(ctx context.Context, obj Object) (string, error) {
	key := s.prefix + Key(obj)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		Metadata: map[string]string{
			"lens-id":     obj.ID,
			"lens-seq":    strconv.FormatUint(obj.Seq, 10),
			"lens-width":  strconv.Itoa(obj.Width),
			"lens-height": strconv.Itoa(obj.Height),
			"received-at": obj.ReceivedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", saveError(key, err)
	}
	return key, nil
}

// S3Options configures NewS3Client.
type S3Options struct {
	// Region defaults to AWS_REGION, then "us-east-1".
	Region string

	// Endpoint overrides the service endpoint and switches to path-style
	// addressing, for MinIO and other S3-compatible servers.
	Endpoint string
}

// NewS3Client builds an S3 client. Credentials come from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without
// them requests are sent anonymously.
func NewS3Client(opts S3Options) *s3.Client {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	o := s3.Options{
		Region:      region,
		Credentials: envCredentials(),
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	}
	return s3.New(o)
}

func envCredentials() aws.CredentialsProvider {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	token := os.Getenv("AWS_SESSION_TOKEN")
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "Environment",
		}, nil
	}))
}
