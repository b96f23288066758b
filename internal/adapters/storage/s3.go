package storage

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// S3Lister implements ObjectLister for AWS S3 and S3-compatible stores such
// as the Copernicus eodata endpoint.
type S3Lister struct {
	client *s3.Client
}

// S3Config holds S3 configuration.
type S3Config struct {
	Region          string
	Endpoint        string // Custom endpoint, e.g. https://eodata.dataspace.copernicus.eu
	UsePathStyle    bool   // Forced on when Endpoint is set
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Lister creates a new S3 lister.
func NewS3Lister(ctx context.Context, cfg S3Config) (*S3Lister, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else if cfg.UsePathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Lister{client: s3.NewFromConfig(awsCfg, clientOpts...)}, nil
}

// ListPrefix returns the objects and common prefixes directly under prefix.
func (s *S3Lister) ListPrefix(ctx context.Context, bucket, prefix string) (output.Listing, error) {
	var listing output.Listing

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return output.Listing{}, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
		}

		for _, obj := range page.Contents {
			o := output.StorageObject{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), "\""),
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			listing.Objects = append(listing.Objects, o)
		}

		for _, p := range page.CommonPrefixes {
			listing.Prefixes = append(listing.Prefixes, aws.ToString(p.Prefix))
		}
	}

	return listing, nil
}
