package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"battle-engine/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/unidecode"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver uploads completed battles to an R2 bucket as JSON snapshots.
type R2Archiver struct {
	client     objectPutter
	bucket     string
	cdnBaseURL string
}

type R2Options struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

func NewR2Archiver(ctx context.Context, opts R2Options) (*R2Archiver, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	cdn := opts.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + opts.Bucket
	}
	return &R2Archiver{client: client, bucket: opts.Bucket, cdnBaseURL: strings.TrimRight(cdn, "/")}, nil
}

// ArchiveKey is the object key of a battle snapshot.
func ArchiveKey(b *models.Battle) string {
	at := b.CreatedAt
	if b.CompletedAt != nil {
		at = *b.CompletedAt
	}
	return fmt.Sprintf("battles/%s/%s.json", at.UTC().Format("2006/01"), b.ID)
}

// archiveMetadata describes the snapshot. Object metadata must be ASCII, so
// user ids are transliterated.
func archiveMetadata(b *models.Battle) map[string]string {
	ids := make([]string, len(b.Participants))
	for i, p := range b.Participants {
		ids[i] = unidecode.Unidecode(p.UserID)
	}
	md := map[string]string{
		"battle-type":  string(b.Type),
		"format":       string(b.Format),
		"participants": strings.Join(ids, ","),
		"winner":       unidecode.Unidecode(b.WinnerID),
	}
	if b.TournamentID != "" {
		md["tournament"] = b.TournamentID
	}
	return md
}

func (a *R2Archiver) Archive(ctx context.Context, b *models.Battle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode battle %s: %w", b.ID, err)
	}
	key := ArchiveKey(b)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
		Metadata:    archiveMetadata(b),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

// URL returns the public address of a battle snapshot.
func (a *R2Archiver) URL(b *models.Battle) string {
	return fmt.Sprintf("%s/%s", a.cdnBaseURL, ArchiveKey(b))
}
