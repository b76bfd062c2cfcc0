package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/retry"
	pkgerrors "github.com/pkg/errors"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Gateway stores videos in an S3 compatible bucket under
// uploads/{owner}/{name}. Records that still point at local files are
// served by the local gateway.
type S3Gateway struct {
	client    objectAPI
	presigner presignAPI
	bucket    string
	expiry    time.Duration
	tempDir   string
	exec      *retry.Executor
	local     *LocalGateway
}

func NewS3Gateway(ctx context.Context, cfg config.StorageConfig, exec *retry.Executor, local *LocalGateway) (*S3Gateway, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Configuration("storage.NewS3Gateway", err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Gateway(client, s3.NewPresignClient(client), cfg.Bucket, cfg.URLExpiry, exec, local), nil
}

func newS3Gateway(client objectAPI, presigner presignAPI, bucket string, expiry time.Duration, exec *retry.Executor, local *LocalGateway) *S3Gateway {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3Gateway{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		expiry:    expiry,
		tempDir:   os.TempDir(),
		exec:      exec,
		local:     local,
	}
}

func ObjectKey(ownerID int64, name string) string {
	return fmt.Sprintf("uploads/%d/%s", ownerID, name)
}

func (g *S3Gateway) Store(ctx context.Context, r io.Reader, ownerID int64, name string) (models.Locator, error) {
	const op = "S3Gateway.Store"

	body, cleanup, err := g.seekable(r)
	if err != nil {
		return models.Locator{}, errors.Storage(op, err, "failed to buffer upload")
	}
	defer cleanup()

	key := ObjectKey(ownerID, name)
	err = g.exec.Run(ctx, retry.Default, op, func(ctx context.Context) error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(g.bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(ContentType(name)),
		})
		return classifyS3Error(op, err)
	})
	if err != nil {
		return models.Locator{}, errors.Storage(op, err, "failed to upload to S3")
	}

	return models.ObjectLocator(key), nil
}

// seekable returns r as a ReadSeeker so each upload attempt can start from
// the beginning, spooling it to a temp file when needed.
func (g *S3Gateway) seekable(r io.Reader) (io.ReadSeeker, func(), error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, func() {}, nil
	}

	f, err := os.CreateTemp(g.tempDir, "upload-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	if _, err := io.Copy(f, r); err != nil {
		cleanup()
		return nil, nil, err
	}
	return f, cleanup, nil
}

func (g *S3Gateway) ResolveAccessURL(ctx context.Context, loc models.Locator) string {
	if !loc.IsObject() {
		return g.local.ResolveAccessURL(ctx, loc)
	}

	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:              aws.String(g.bucket),
		Key:                 aws.String(loc.Key),
		ResponseContentType: aws.String(ContentType(loc.Key)),
	}, s3.WithPresignExpires(g.expiry))
	if err != nil {
		return ""
	}
	return req.URL
}

func (g *S3Gateway) Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error) {
	const op = "S3Gateway.Open"

	if !loc.IsObject() {
		return g.local.Open(ctx, loc)
	}

	out, err := retry.Do(ctx, g.exec, retry.Default, op, func(ctx context.Context) (*s3.GetObjectOutput, error) {
		out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(loc.Key),
		})
		return out, classifyS3Error(op, err)
	})
	if err != nil {
		return nil, errors.Storage(op, err, "failed to download from S3")
	}
	return out.Body, nil
}

var throttleCodes = map[string]bool{
	"SlowDown":                 true,
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"RequestThrottled":         true,
}

// classifyS3Error marks throttling responses as transient so the retry
// executor backs off on them.
func classifyS3Error(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if pkgerrors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
		return errors.Transient(op, err, "S3 throttled the request")
	}

	var respErr *awshttp.ResponseError
	if pkgerrors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return errors.Transient(op, err, "S3 throttled the request")
		}
	}
	return err
}
