// internal/services/storage_service.go
package services

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/metrics"
)

const (
	RejectTooLarge  = "too_large"
	RejectInvalid   = "invalid"
	RejectOverLimit = "over_limit"
)

var (
	errImageTooLarge = errors.New("image too large")
	errImageInvalid  = errors.New("invalid image file")
)

// ImageRejection explains why a selected file did not make it into a draft.
type ImageRejection struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// StorageService turns uploaded product images into image references:
// public S3 URLs when a bucket is configured, inline data URLs otherwise.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
	maxBytes int64
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	s := &StorageService{
		config:   config,
		maxBytes: config.Products.MaxImageBytes,
	}

	if config.AWS.AccessKeyID == "" {
		// Inline data URLs, the way the browser client previews them
		return s, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	s.s3Client = s3.New(sess)
	return s, nil
}

// IngestImages reads up to slots files concurrently and returns their
// references in selection order. Files beyond slots, oversized files and
// files that are not images are reported as rejections, not errors.
func (s *StorageService) IngestImages(ctx context.Context, files []*multipart.FileHeader, slots int) ([]string, []ImageRejection, error) {
	if slots < 0 {
		slots = 0
	}

	var rejections []ImageRejection
	accepted := files
	if len(files) > slots {
		accepted = files[:slots]
		for i := slots; i < len(files); i++ {
			rejections = append(rejections, ImageRejection{Index: i, Name: files[i].Filename, Reason: RejectOverLimit})
			metrics.ImagesIngestedTotal.WithLabelValues(RejectOverLimit).Inc()
		}
	}

	// Each result slot is owned by exactly one goroutine.
	refs := make([]string, len(accepted))
	reasons := make([]string, len(accepted))

	g, ctx := errgroup.WithContext(ctx)
	for i, header := range accepted {
		g.Go(func() error {
			ref, err := s.ingest(ctx, header)
			switch {
			case errors.Is(err, errImageTooLarge):
				reasons[i] = RejectTooLarge
			case errors.Is(err, errImageInvalid):
				reasons[i] = RejectInvalid
			case err != nil:
				return fmt.Errorf("image %d (%s): %w", i, header.Filename, err)
			default:
				refs[i] = ref
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	images := make([]string, 0, len(accepted))
	for i := range accepted {
		if reasons[i] != "" {
			rejections = append(rejections, ImageRejection{Index: i, Name: accepted[i].Filename, Reason: reasons[i]})
			metrics.ImagesIngestedTotal.WithLabelValues(reasons[i]).Inc()
			continue
		}
		images = append(images, refs[i])
		metrics.ImagesIngestedTotal.WithLabelValues("accepted").Inc()
	}

	// over-limit rejections were added first; keep the list in index order
	slices.SortFunc(rejections, func(a, b ImageRejection) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return images, rejections, nil
}

func (s *StorageService) ingest(ctx context.Context, header *multipart.FileHeader) (string, error) {
	if s.maxBytes > 0 && header.Size > s.maxBytes {
		return "", errImageTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.IngestBytes(ctx, header.Filename, file)
}

// IngestBytes validates one image read from r and stores it.
func (s *StorageService) IngestBytes(ctx context.Context, filename string, r io.Reader) (string, error) {
	limit := s.maxBytes
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}

	// Read one byte past the limit to detect oversized bodies
	fileBytes, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(fileBytes)) > limit {
		return "", errImageTooLarge
	}

	contentType, ok := detectImageType(fileBytes)
	if !ok {
		return "", errImageInvalid
	}

	if s.s3Client != nil {
		return s.uploadToS3(ctx, fileBytes, s.generateFileName(filename, contentType), contentType)
	}
	return dataURL(contentType, fileBytes), nil
}

func (s *StorageService) uploadToS3(ctx context.Context, fileBytes []byte, key, contentType string) (string, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
		ACL:           aws.String("public-read"),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.getS3URL(key), nil
}

// Release deletes an uploaded image that was removed from a draft. Inline
// and foreign references are ignored.
func (s *StorageService) Release(ctx context.Context, ref string) {
	if s.s3Client == nil {
		return
	}
	prefix := s.getS3URL("")
	if !strings.HasPrefix(ref, prefix) {
		return
	}

	key := strings.TrimPrefix(ref, prefix)
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete image from S3")
	}
}

func (s *StorageService) generateFileName(originalName, contentType string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = "." + strings.TrimPrefix(contentType, "image/")
	}

	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("products/%s_%s%s", timestamp, uuid.New().String()[:8], ext)
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.config.AWS.CloudFrontURL, "/"), key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// detectImageType checks the file signature for JPEG, PNG, GIF and WEBP.
func detectImageType(buffer []byte) (string, bool) {
	switch {
	case len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF:
		return "image/jpeg", true
	case len(buffer) >= 8 && bytes.Equal(buffer[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", true
	case len(buffer) >= 6 && (string(buffer[:6]) == "GIF87a" || string(buffer[:6]) == "GIF89a"):
		return "image/gif", true
	case len(buffer) >= 12 && string(buffer[:4]) == "RIFF" && string(buffer[8:12]) == "WEBP":
		return "image/webp", true
	}
	return "", false
}
