package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	appconfig "github.com/semmidev/stowage/internal/config"
	"github.com/semmidev/stowage/internal/domain"
)

var _ Store = (*S3Storage)(nil)

// S3API is the subset of *s3.Client the adapter calls, so tests can swap it.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type FileUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

type S3Storage struct {
	client    S3API
	presigner Presigner
	uploader  FileUploader
	http      aws.HTTPClient
	limiter   *rate.Limiter
	bucket    string
	now       func() time.Time
}

// NewS3 creates a new S3Storage instance using AWS SDK v2
func NewS3(ctx context.Context, cfg *appconfig.StorageConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithClientLogMode(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	httpClient := awsCfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return newS3(client, s3.NewPresignClient(client), s3manager.NewUploader(client), httpClient, cfg.Bucket, cfg.MaxRPS), nil
}

func newS3(client S3API, presigner Presigner, uploader FileUploader, httpClient aws.HTTPClient, bucket string, maxRPS int) *S3Storage {
	var limiter *rate.Limiter
	if maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRPS), maxRPS)
	}

	return &S3Storage{
		client:    client,
		presigner: presigner,
		uploader:  uploader,
		http:      httpClient,
		limiter:   limiter,
		bucket:    bucket,
		now:       time.Now,
	}
}

func (s *S3Storage) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// IssueCredential presigns a PUT for exactly req.Key. Insert-only
// credentials sign If-None-Match: * so an existing object is never replaced.
func (s *S3Storage) IssueCredential(ctx context.Context, req domain.CredentialRequest) (domain.Credential, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(req.Key),
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	if req.ContentEncoding != "" {
		input.ContentEncoding = aws.String(req.ContentEncoding)
	}
	if !req.AllowOverwrite {
		input.IfNoneMatch = aws.String("*")
	}

	issuedAt := s.now()
	presigned, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(req.Expiry))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to presign %s: %w", req.Key, err)
	}

	return domain.Credential{
		Scope:     domain.Scope(s.bucket, req.Key),
		Method:    presigned.Method,
		URL:       presigned.URL,
		Header:    presigned.SignedHeader.Clone(),
		ExpiresAt: issuedAt.Add(req.Expiry),
	}, nil
}

type s3ErrorPayload struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// Upload replays the presigned request with the file as body. A returned
// error means the request never produced a response.
func (s *S3Storage) Upload(ctx context.Context, cred domain.Credential, key string, localPath string) (domain.UploadResponse, error) {
	if cred.Scope != domain.Scope(s.bucket, key) {
		return domain.UploadResponse{}, fmt.Errorf("credential scope %q does not cover %s", cred.Scope, key)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to stat file: %w", err)
	}

	if err := s.wait(ctx); err != nil {
		return domain.UploadResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, cred.Method, cred.URL, file)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.ContentLength = info.Size()
	for name, values := range cred.Header {
		if strings.EqualFold(name, "Host") {
			req.Host = values[0]
			continue
		}
		req.Header[name] = values
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to upload to S3: %w", err)
	}
	defer resp.Body.Close()

	out := domain.UploadResponse{StatusCode: resp.StatusCode}
	if out.OK() {
		_, _ = io.Copy(io.Discard, resp.Body)
		return out, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload s3ErrorPayload
	if xml.Unmarshal(body, &payload) == nil {
		out.Error = payload.Message
		if out.Error == "" {
			out.Error = payload.Code
		}
	}

	return out, nil
}

// ListByPrefix returns one ListObjectsV2 page.
func (s *S3Storage) ListByPrefix(ctx context.Context, prefix string, pageSize int, cursor string) (domain.ListPage, error) {
	if err := s.wait(ctx); err != nil {
		return domain.ListPage{}, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(pageSize)),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	resp, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return domain.ListPage{}, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	page := domain.ListPage{Keys: make([]string, 0, len(resp.Contents))}
	for _, obj := range resp.Contents {
		page.Keys = append(page.Keys, aws.ToString(obj.Key))
	}
	if aws.ToBool(resp.IsTruncated) {
		page.NextCursor = aws.ToString(resp.NextContinuationToken)
	}

	return page, nil
}

// BatchDelete issues one DeleteObjects call and reports every key, deleted or not.
func (s *S3Storage) BatchDelete(ctx context.Context, keys []string) ([]domain.DeleteOutcome, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) > appconfig.MaxDeleteBatch {
		return nil, fmt.Errorf("batch of %d keys exceeds the limit of %d", len(keys), appconfig.MaxDeleteBatch)
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	resp, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete from S3: %w", err)
	}

	outcomes := make([]domain.DeleteOutcome, 0, len(resp.Deleted)+len(resp.Errors))
	for _, d := range resp.Deleted {
		outcomes = append(outcomes, domain.DeleteOutcome{Key: aws.ToString(d.Key), Code: http.StatusOK})
	}
	for _, e := range resp.Errors {
		code := aws.ToString(e.Code)
		outcomes = append(outcomes, domain.DeleteOutcome{
			Key:       aws.ToString(e.Key),
			Code:      statusForErrorCode(code),
			ErrorCode: code,
			Error:     aws.ToString(e.Message),
		})
	}

	return outcomes, nil
}

// PutFile uploads a local file with the multipart-aware manager.
func (s *S3Storage) PutFile(ctx context.Context, key string, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := s.wait(ctx); err != nil {
		return err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(domain.ContentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

func statusForErrorCode(code string) int {
	switch code {
	case "AccessDenied":
		return http.StatusForbidden
	case "NoSuchKey", "NoSuchBucket":
		return http.StatusNotFound
	case "SlowDown":
		return http.StatusServiceUnavailable
	case "InvalidArgument", "MalformedXML":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
