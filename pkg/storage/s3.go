package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// FolderImports is the S3 prefix for archived guest list uploads.
	FolderImports = "imports"
	// ContentTypeXLSX is the MIME type of Excel workbooks.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// DownloadExpire is how long an archived file link stays valid.
	DownloadExpire = 15 * time.Minute
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ImportsBucket   string
}

// S3 archives uploaded guest lists and hands out pre-signed download links.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewS3 creates an S3 client using credentials from config or the default AWS chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("imports_bucket", cfg.ImportsBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ImportKey returns the object key of an archived upload:
// imports/{event_id}/{yyyymmddThhmmss}-{filename}.
func ImportKey(eventID uuid.UUID, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.xlsx"
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return path.Join(FolderImports, eventID.String(), at.UTC().Format("20060102T150405")+"-"+name)
}

// ArchiveImport stores an uploaded spreadsheet in the imports bucket and returns its key.
func (s *S3) ArchiveImport(ctx context.Context, eventID uuid.UUID, filename string, data []byte) (string, error) {
	key := ImportKey(eventID, filename, s.now())
	size := int64(len(data))
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.cfg.ImportsBucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String(ContentTypeXLSX),
		ContentLength:        &size,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("import archived", zap.String("key", key), zap.Int64("bytes", size))
	return key, nil
}

// DownloadURL returns a pre-signed GET URL for an archived upload.
func (s *S3) DownloadURL(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.ImportsBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = DownloadExpire
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
