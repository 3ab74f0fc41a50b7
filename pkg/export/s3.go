package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/pkg/types"
)

// S3Config configures an S3Exporter
type S3Config struct {
	Bucket          string
	Endpoint        string // empty uses AWS; set for R2, MinIO and other S3-compatible stores
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // key prefix, e.g. "headshots/"
	HTTPClient      *http.Client
}

// S3Exporter uploads results to an S3-compatible bucket.
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Exporter creates an exporter using static credentials. Custom
// endpoints are addressed path-style.
func NewS3Exporter(cfg S3Config, logger *slog.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	region := cfg.Region
	if region == "" || (region == "auto" && cfg.Endpoint == "") {
		region = "us-east-1"
	}
	logger = logging.Or(logger)

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"", // no session token
	)

	awsCfg := aws.Config{
		Region:                     region,
		Credentials:                creds,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.HTTPClient != nil {
		awsCfg.HTTPClient = cfg.HTTPClient
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("initialized s3 exporter",
		"bucket", cfg.Bucket,
		"endpoint", endpoint,
		"region", region,
	)

	return &S3Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Export uploads res as <prefix>/<name> and returns its s3:// location.
func (e *S3Exporter) Export(ctx context.Context, name string, res *types.RenderResult) (string, error) {
	loc, err := e.export(ctx, name, res)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExportsTotal.WithLabelValues("s3", status).Inc()
	return loc, err
}

func (e *S3Exporter) export(ctx context.Context, name string, res *types.RenderResult) (string, error) {
	if err := checkResult(res); err != nil {
		return "", &Error{Op: "s3", Name: name, Err: err}
	}
	key, err := e.key(name)
	if err != nil {
		return "", &Error{Op: "s3", Name: name, Err: err}
	}

	contentType := res.MIME
	if contentType == "" {
		contentType = res.Format.MIME()
	}

	out, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(res.Data),
		ContentLength: aws.Int64(int64(len(res.Data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", &Error{Op: "s3", Name: name, Err: wrapS3Error(err)}
	}

	e.logger.Debug("exported headshot to s3",
		"bucket", e.bucket,
		"key", key,
		"etag", aws.ToString(out.ETag),
		"content_type", contentType,
	)
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}

func (e *S3Exporter) key(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if e.prefix == "" {
		return clean, nil
	}
	return e.prefix + "/" + clean, nil
}

func wrapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.ErrorMessage())
		}
	}
	return err
}
