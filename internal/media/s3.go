package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"devsnippet/internal/config"
	"devsnippet/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// objectAPI is the slice of the S3 client the delegate uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Delegate keeps assets in an S3-compatible bucket using path-style addressing.
type S3Delegate struct {
	api       objectAPI
	bucket    string
	endpoint  string
	publicURL string
}

// NewS3Delegate returns (nil, nil) when storage is not configured, allowing the
// API to start without it.
func NewS3Delegate(cfg *config.Config) (*S3Delegate, error) {
	if !cfg.MediaConfigured() {
		return nil, nil
	}

	endpoint := strings.TrimRight(cfg.MediaEndpoint, "/")
	client := s3.New(s3.Options{
		Region:       cfg.MediaRegion,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.MediaAccessKey, cfg.MediaSecretKey, ""),
		UsePathStyle: true,
	})
	return newS3Delegate(client, cfg.MediaBucket, endpoint, cfg.MediaPublicURL), nil
}

func newS3Delegate(api objectAPI, bucket, endpoint, publicURL string) *S3Delegate {
	return &S3Delegate{
		api:       api,
		bucket:    bucket,
		endpoint:  strings.TrimRight(endpoint, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload stores the object under <resourceType>/<uuid><ext> with a public-read ACL.
func (d *S3Delegate) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	resourceType, err := ResourceTypeFor(in.ContentType)
	if err != nil {
		return nil, err
	}

	key := resourceType + "/" + uuid.NewString() + strings.ToLower(path.Ext(in.Filename))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}

	if _, err := d.api.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 upload %s/%s: %w", d.bucket, key, err)
	}
	return &Asset{URL: d.FileURL(key), PublicID: key, ResourceType: resourceType}, nil
}

// Delete removes the object; the public id is the object key.
func (d *S3Delegate) Delete(ctx context.Context, ref models.MediaRef) error {
	_, err := d.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(ref.PublicID),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", d.bucket, ref.PublicID, err)
	}
	return nil
}

// FileURL returns the public URL for key, preferring the configured CDN base.
func (d *S3Delegate) FileURL(key string) string {
	if d.publicURL != "" {
		return d.publicURL + "/" + key
	}
	return d.endpoint + "/" + d.bucket + "/" + key
}
