package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Webhook payload archive on Cloudflare R2 (S3-compatible). Best-effort: callers
// never fail a webhook because the archive write failed.

func getR2Config() (aws.Config, error) {
	accountID := os.Getenv("R2_ACCOUNT_ID")
	accessKey := os.Getenv("R2_ACCESS_KEY_ID")
	secretKey := os.Getenv("R2_SECRET_ACCESS_KEY")

	if accountID == "" || accessKey == "" || secretKey == "" {
		return aws.Config{}, fmt.Errorf("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID or R2_SECRET_ACCESS_KEY not set")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"), // Required by SDK, R2 ignores this
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load R2 config: %w", err)
	}
	return cfg, nil
}

func getR2Client() (*s3.Client, error) {
	accountID := os.Getenv("R2_ACCOUNT_ID")
	if accountID == "" {
		return nil, fmt.Errorf("R2_ACCOUNT_ID not set")
	}
	cfg, err := getR2Config()
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return client, nil
}

// ArchiveEnabled reports whether the payload archive is configured.
func ArchiveEnabled() bool {
	return os.Getenv("R2_ACCOUNT_ID") != "" && os.Getenv("R2_WEBHOOK_BUCKET") != ""
}

// ArchiveWebhookPayload writes a raw callback body under
// webhooks/<provider>/<date>/<hash>.json. Payloads carry no clinical content by
// construction (providers only echo what we sent plus their own fields).
func ArchiveWebhookPayload(ctx context.Context, provider, payloadHash string, body []byte) error {
	client, err := getR2Client()
	if err != nil {
		return err
	}
	bucket := os.Getenv("R2_WEBHOOK_BUCKET")
	if bucket == "" {
		return fmt.Errorf("R2_WEBHOOK_BUCKET not set")
	}
	key := fmt.Sprintf("webhooks/%s/%s/%s.json", provider, time.Now().UTC().Format("2006-01-02"), payloadHash)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive webhook payload: %w", err)
	}
	return nil
}
