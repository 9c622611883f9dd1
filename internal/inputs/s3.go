// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// S3 object storage access.

package inputs

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds object storage connection parameters, populated from the
// environment. Credential variable names follow the usual AWS conventions so
// that existing deployments work unchanged, endpoint and SSL toggles allow
// pointing the tool at S3-compatible storage (e.g. MinIO).
type S3Config struct {
	Endpoint     string `env:"VISEEK_S3_ENDPOINT" envDefault:"s3.amazonaws.com"`
	AccessKey    string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey    string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken string `env:"AWS_SESSION_TOKEN"`
	Region       string `env:"AWS_REGION" envDefault:"us-east-1"`
	UseSSL       bool   `env:"VISEEK_S3_USE_SSL" envDefault:"true"`
}

// LoadS3Config reads S3 configuration from the environment.
func LoadS3Config() (S3Config, error) {
	var cfg S3Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing S3 config from environment: %w", err)
	}
	return cfg, nil
}

// newS3Client creates a minio client from environment configuration.
func newS3Client() (*miniogo.Client, error) {
	cfg, err := LoadS3Config()
	if err != nil {
		return nil, err
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	return client, nil
}

// DownloadS3 fetches an s3://bucket/key object into dest.
func DownloadS3(ctx context.Context, rawURL, dest string) error {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return err
	}
	client, err := newS3Client()
	if err != nil {
		return err
	}
	if err := client.FGetObject(ctx, bucket, key, dest, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	return nil
}

// UploadS3 uploads a local file to an s3://bucket/key URL.
func UploadS3(ctx context.Context, localPath, rawURL, contentType string) error {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return err
	}
	client, err := newS3Client()
	if err != nil {
		return err
	}
	opts := miniogo.PutObjectOptions{ContentType: contentType}
	if _, err := client.FPutObject(ctx, bucket, key, localPath, opts); err != nil {
		return fmt.Errorf("uploading %s to %s: %w", localPath, rawURL, err)
	}
	return nil
}
