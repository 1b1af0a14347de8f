package dataset

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultRegion = "us-east-1"

type S3Settings struct {
	Profile  string `mapstructure:"profile"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // MinIO, LocalStack
}

type AzureSettings struct {
	// ServiceURL is a format string receiving the storage account name.
	ServiceURL string `mapstructure:"service_url"`
}

type Settings struct {
	S3    S3Settings    `mapstructure:"s3"`
	Azure AzureSettings `mapstructure:"azure"`
}

type s3Fetcher struct {
	client *s3.Client
}

func newS3Fetcher(ctx context.Context, settings S3Settings) (*s3Fetcher, error) {
	opts := []func(*config.LoadOptions) error{config.WithDefaultRegion(DefaultRegion)}
	if settings.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(settings.Profile))
	}
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Fetcher{client: client}, nil
}

// Open reads s3://bucket/key.
func (f *s3Fetcher) Open(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	key := strings.TrimPrefix(uri.Path, "/")
	if uri.Host == "" || key == "" {
		return nil, fmt.Errorf("s3 uri %q needs a bucket and key", uri)
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(uri.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", uri, err)
	}
	return out.Body, nil
}

type azureFetcher struct {
	serviceURL string
	cred       *azidentity.DefaultAzureCredential
}

func newAzureFetcher(settings AzureSettings) (*azureFetcher, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	serviceURL := settings.ServiceURL
	if serviceURL == "" {
		serviceURL = "https://%s.blob.core.windows.net/"
	}
	return &azureFetcher{serviceURL: serviceURL, cred: cred}, nil
}

// Open reads azblob://account/container/path/to/blob.
func (f *azureFetcher) Open(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	container, blob, ok := strings.Cut(strings.TrimPrefix(uri.Path, "/"), "/")
	if uri.Host == "" || !ok || container == "" || blob == "" {
		return nil, fmt.Errorf("azblob uri %q needs account, container and blob", uri)
	}

	client, err := azblob.NewClient(fmt.Sprintf(f.serviceURL, uri.Host), f.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azblob client for %s: %w", uri.Host, err)
	}
	resp, err := client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("azblob download %s: %w", uri, err)
	}
	return resp.Body, nil
}
