package s3store

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dev-tams/prunekit/internal/storage/prunable"
)

// deleteBatchSize is the DeleteObjects API limit.
const deleteBatchSize = 1000

type Store struct {
	name   string
	bucket string
	prefix string
	client *s3.Client
	region string
}

type Options struct {
	Name      string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

func New(ctx context.Context, opt Options) (*Store, error) {
	if opt.Bucket == "" || opt.Region == "" {
		return nil, fmt.Errorf("s3: bucket and region are required")
	}

	creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(opt.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Store{
		name:   opt.Name,
		bucket: opt.Bucket,
		region: opt.Region,
		prefix: strings.Trim(opt.Prefix, "/"),
		client: s3.NewFromConfig(cfg),
	}, nil
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	// S3 keys use forward slashes.
	return path.Join(s.prefix, key)
}

// Walk pages through every key under root. Paths handed to fn are relative to
// the configured prefix, matching what RemoveAll expects back.
func (s *Store) Walk(ctx context.Context, root string, fn func(prunable.Object) error) error {
	listPrefix := s.fullKey(strings.Trim(root, "/"))
	if listPrefix != "" {
		listPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapAPIError("s3 list failed", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			if err := fn(prunable.Object{Path: key, Kind: prunable.KindObject}); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveAll deletes the object at path plus every key under path + "/", in
// DeleteObjects batches. Deleting keys that no longer exist is a no-op, which
// is S3's native behavior.
func (s *Store) RemoveAll(ctx context.Context, p string) error {
	root := s.fullKey(strings.Trim(p, "/"))

	keys := []string{root}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(root + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapAPIError("s3 list for delete failed", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return wrapAPIError("s3 delete failed", err)
		}
		for _, derr := range out.Errors {
			return fmt.Errorf(
				"s3 delete failed for %s: %s: %s",
				aws.ToString(derr.Key),
				aws.ToString(derr.Code),
				aws.ToString(derr.Message),
			)
		}
	}
	return nil
}

func wrapAPIError(msg string, err error) error {
	if apiErr, ok := err.(smithy.APIError); ok {
		return fmt.Errorf("%s: %s: %s", msg, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s: %w", msg, err)
}
