package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Writer streams everything written to it into a single S3 object. It is meant
// to be used as a Stream destination; Close must be called to finish the upload.
type S3Writer struct {
	bucket string
	key    string
	pw     *io.PipeWriter
	done   chan error
}

func NewS3Client(ctx context.Context, profile string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func NewS3Writer(ctx context.Context, api manager.UploadAPIClient, bucket, key string) *S3Writer {
	pr, pw := io.Pipe()
	w := &S3Writer{bucket: bucket, key: key, pw: pw, done: make(chan error, 1)}
	uploader := manager.NewUploader(api)
	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		if err != nil {
			log.Error().Str("op", "sink/s3").Err(err).Msgf("Upload to s3://%s/%s failed", bucket, key)
		}
		w.done <- err
	}()
	return w
}

func (w *S3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close finishes the object and waits for the upload result.
func (w *S3Writer) Close() error {
	w.pw.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("error uploading s3://%s/%s: %w", w.bucket, w.key, err)
	}
	log.Debug().Str("op", "sink/s3").Msgf("Uploaded s3://%s/%s", w.bucket, w.key)
	return nil
}

// Abort cancels the upload; nothing is stored.
func (w *S3Writer) Abort(cause error) error {
	w.pw.CloseWithError(cause)
	<-w.done
	return nil
}

func ParseS3URL(url string) (string, string, error) {
	url = strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(url, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL format")
	}
	return parts[0], parts[1], nil
}
