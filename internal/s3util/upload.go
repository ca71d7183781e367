package s3util

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/jhoneycutt/analyze-keyframes/internal/report"
)

// PutObjectAPI is the part of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReportContentType returns the MIME type of a CSV report at path. It
// follows the same suffix rule report uses to decide on compression.
func ReportContentType(path string) string {
	if report.IsCompressed(path) {
		return "application/zstd"
	}
	return "text/csv"
}

// UploadReport uploads the local report at path to bucket/key.
func UploadReport(ctx context.Context, client PutObjectAPI, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat report: %w", err)
	}

	log.Debug().
		Str("path", path).
		Str("bucket", bucket).
		Str("key", key).
		Int64("bytes", info.Size()).
		Msg("Uploading report to S3")

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ReportContentType(path)),
		Tagging:       ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to S3: %w", err)
	}

	log.Info().Str("uri", Scheme+bucket+"/"+key).Msg("Report uploaded to S3")
	return nil
}
