// Package archive stores the original platform payload of ingested episodes.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// ObjectStore is the part of the S3 API the archiver needs.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes raw payloads as JSON objects.
type S3Archiver struct {
	store  ObjectStore
	bucket string
	prefix string
	logger interfaces.Logger
}

// NewS3Archiver creates an archiver over an object store.
func NewS3Archiver(store ObjectStore, bucket, prefix string, logger interfaces.Logger) *S3Archiver {
	return &S3Archiver{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// NewS3Client loads the AWS configuration for the archive settings. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Key returns the object key of a payload: <prefix>/<platform>/<yyyy>/<mm>/<identifier>.json.
func (a *S3Archiver) Key(raw models.RawEpisode, identifier string) string {
	release := raw.ReleaseDateTime.UTC()
	return path.Join(a.prefix,
		strings.ToLower(raw.Platform.Name()),
		fmt.Sprintf("%04d", release.Year()),
		fmt.Sprintf("%02d", int(release.Month())),
		identifier+".json")
}

// Archive stores the original payload of a raw episode. Episodes without one are ignored.
func (a *S3Archiver) Archive(ctx context.Context, raw models.RawEpisode, identifier string) error {
	if len(raw.Original) == 0 {
		return nil
	}
	key := a.Key(raw, identifier)
	_, err := a.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw.Original),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"platform":    string(raw.Platform),
			"platform-id": raw.PlatformID,
			"country":     raw.CountryCode,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	a.logger.Debug("Raw episode archived",
		interfaces.String("bucket", a.bucket),
		interfaces.String("key", key))
	return nil
}
