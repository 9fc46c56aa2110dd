package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

// PhotoStoreProvider keeps item photos in an S3 compatible bucket, keyed by item id.
type PhotoStoreProvider interface {
	Upload(ctx context.Context, itemID string, content []byte) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type PhotoStore struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
}

// NewR2PhotoStore points the S3 client at a Cloudflare R2 account.
func NewR2PhotoStore(ctx context.Context, cfg Config) (*PhotoStore, error) {
	accountID := cfg.R2AccountID
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
		}, nil
	})
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2AccessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewPhotoStore(s3.NewFromConfig(awsCfg), cfg.R2BucketName), nil
}

func NewPhotoStore(client *s3.Client, bucketName string) *PhotoStore {
	return &PhotoStore{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    bucketName,
	}
}

func PhotoKey(itemID string) string {
	return "items/" + itemID
}

func (p *PhotoStore) Upload(ctx context.Context, itemID string, content []byte) (string, error) {
	mimeType, ok := DetectImageType(content)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	key := PhotoKey(itemID)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo %s: %w", key, err)
	}
	return key, nil
}

func (p *PhotoStore) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", key, err)
	}
	return content, nil
}

// Delete is idempotent: a missing object is not an error.
func (p *PhotoStore) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(key),
	})
	var notFound *types.NoSuchKey
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to delete photo %s: %w", key, err)
	}
	return nil
}

func (p *PhotoStore) PresignGet(ctx context.Context, key string) (string, error) {
	request, err := p.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignedURLExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return request.URL, nil
}
