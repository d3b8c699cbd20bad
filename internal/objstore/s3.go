package objstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
)

// Remote lists and streams objects from a remote object store.
type Remote interface {
	// List returns the object keys under the given directory-style prefix.
	// An empty result is not an error.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Fetch streams the object body to w.
	Fetch(ctx context.Context, bucket, key string, w io.Writer) error
}

// S3Remote reads public buckets anonymously. All calls go through a circuit
// breaker so a dead endpoint fails fast across a long run instead of hanging
// every scan time.
type S3Remote struct {
	client  *s3.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewS3Remote builds an anonymous S3 client. The NOAA GOES buckets live in
// us-east-1 and require no credentials.
func NewS3Remote(ctx context.Context, backoff BackoffConfig) (*S3Remote, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "goes-s3",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &S3Remote{
		client:  s3.NewFromConfig(cfg),
		backoff: backoff,
		circuit: cb,
	}, nil
}

func (r *S3Remote) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	result, err := doWithResilience(ctx, r.backoff, r.circuit, func() (interface{}, error) {
		var keys []string
		paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, obj := range page.Contents {
				if obj.Key != nil {
					keys = append(keys, *obj.Key)
				}
			}
		}
		return keys, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
	}
	return result.([]string), nil
}

func (r *S3Remote) Fetch(ctx context.Context, bucket, key string, w io.Writer) error {
	_, err := doWithResilience(ctx, r.backoff, r.circuit, func() (interface{}, error) {
		// A retried fetch must not append to a half-written body.
		if f, ok := w.(interface {
			Truncate(size int64) error
			Seek(offset int64, whence int) (int64, error)
		}); ok {
			if err := f.Truncate(0); err != nil {
				return nil, err
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
		}

		out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()

		if _, err := io.Copy(w, out.Body); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("fetch s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
