package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// GetObjectAPI is the part of *s3.Client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DownloadToTempFile downloads an S3 object to a new temporary file and returns
// the file path plus a cleanup function that removes it. The temporary file
// keeps the key's extension so ffprobe can use it as a format hint.
func DownloadToTempFile(ctx context.Context, client GetObjectAPI, bucket, key string) (string, func(), error) {
	log.Info().Str("bucket", bucket).Str("key", key).Msg("Downloading input from S3")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return "", nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	tmpFile, err := os.CreateTemp("", "keyframes-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	n, err := io.Copy(tmpFile, result.Body)
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	log.Debug().Str("path", tmpFile.Name()).Int64("bytes", n).Msg("Input downloaded")
	return tmpFile.Name(), cleanup, nil
}
