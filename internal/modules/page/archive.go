package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appcfg "github.com/decidepage/core/internal/config"
	"github.com/decidepage/core/internal/models"
)

// Archiver uploads finalized pages to S3-compatible object storage.
type Archiver struct {
	client *s3.Client
	opts   appcfg.S3Options
}

// NewArchiver builds an archiver from the S3 options. Returns nil when
// archiving is disabled.
func NewArchiver(opts appcfg.S3Options) *Archiver {
	if !opts.Enable {
		return nil
	}

	cfg := aws.Config{
		Region:      opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(opts.Endpoint, "/"))
		}
		o.UsePathStyle = opts.PathStyleAccess
	})
	return &Archiver{client: client, opts: opts}
}

// Archive uploads the page HTML and returns its public URL.
func (a *Archiver) Archive(ctx context.Context, page *models.PageRecordModel) (string, error) {
	key := fmt.Sprintf("pages/%s/%s/%s.html", page.OwnerType, page.OwnerID, page.ID)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.opts.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(page.HTML),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("archive page %s: %w", page.ID, err)
	}
	return a.publicURL(key), nil
}

func (a *Archiver) publicURL(key string) string {
	if a.opts.CustomDomain != "" {
		return strings.TrimRight(a.opts.CustomDomain, "/") + "/" + key
	}
	if a.opts.Endpoint != "" {
		endpoint := strings.TrimRight(a.opts.Endpoint, "/")
		if a.opts.PathStyleAccess {
			return endpoint + "/" + a.opts.Bucket + "/" + key
		}
		if idx := strings.Index(endpoint, "://"); idx >= 0 {
			return endpoint[:idx+3] + a.opts.Bucket + "." + endpoint[idx+3:] + "/" + key
		}
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.opts.Bucket, a.opts.Region, key)
}
