package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"hygiene-log-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ExportFormat selects the serialized document an export produces.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// FacilityInfo is the observation-form header block. Fields left empty
// render as blank lines on the form.
type FacilityInfo struct {
	FacilityName  string `json:"facility_name"`
	Department    string `json:"department"`
	Ward          string `json:"ward"`
	Section       string `json:"section"`
	PeriodNumber  string `json:"period_number"`
	Date          string `json:"date"`
	SessionNumber string `json:"session_number"`
	Observer      string `json:"observer"`
	PageNumber    string `json:"page_number"`
	Address       string `json:"address"`
}

// FacilityInfoFromProfile prefills the header block from a saved profile.
func FacilityInfoFromProfile(p *models.UserProfile) FacilityInfo {
	if p == nil {
		return FacilityInfo{}
	}
	return FacilityInfo{
		FacilityName: p.FacilityName,
		Department:   p.Department,
		Ward:         p.Ward,
		Section:      p.Section,
		Observer:     p.Observer,
		Address:      p.Address,
	}
}

// ExportResult points the caller at the generated document.
type ExportResult struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExportService serializes a record set as CSV or as the fixed-layout
// observation-form PDF, stores the document in S3, and hands back a
// presigned download URL.
type ExportService struct {
	s3Client *s3.Client
	s3Bucket string
}

// NewExportService creates an export service. accessKey/secretKey and
// endpoint are optional; when set they override the default AWS credential
// chain and endpoint (for S3-compatible storage).
func NewExportService(awsRegion, s3Bucket, accessKey, secretKey, endpoint string) (*ExportService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(awsRegion),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &ExportService{
		s3Client: s3Client,
		s3Bucket: s3Bucket,
	}, nil
}

// Export builds the document, uploads it under exports/{scope}/, and
// returns a presigned GET URL valid for 5 minutes.
func (s *ExportService) Export(ctx context.Context, format ExportFormat, scopeID string, info FacilityInfo, records []*models.HygieneRecord) (*ExportResult, error) {
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatCSV:
		body, err = BuildCSV(records)
		contentType = "text/csv"
	case FormatPDF:
		body, err = BuildObservationPDF(info, records)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%s/%s.%s", scopeID, uuid.New().String(), format)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign export: %w", err)
	}

	return &ExportResult{
		Key:         key,
		DownloadURL: request.URL,
		ExpiresIn:   300,
	}, nil
}

// BuildCSV serializes records as CSV, newest event first, one row per
// record with a header row.
func BuildCSV(records []*models.HygieneRecord) ([]byte, error) {
	sorted := make([]*models.HygieneRecord, len(records))
	copy(sorted, records)
	sortByTimestampDesc(sorted)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "timing", "timing_name", "action", "notes", "recorder", "facility"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range sorted {
		row := []string{
			time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339),
			strconv.Itoa(int(rec.Timing)),
			rec.Timing.Name(),
			string(rec.Action),
			rec.Notes,
			rec.RecorderName,
			rec.FacilityName,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
