package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"time"

	"encrypted_match/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const receiptURLExpiry = 5 * time.Minute

type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Receipt is the public record of how a session ended.
type Receipt struct {
	SessionKey     string `json:"sessionKey"`
	SessionID      string `json:"sessionId"`
	Outcome        string `json:"outcome"`
	MatchTimestamp int64  `json:"matchTimestamp,omitempty"`
	FinalizedAt    int64  `json:"finalizedAt"`
}

// ReceiptArchive writes a receipt to S3 whenever a session is finalized.
type ReceiptArchive struct {
	Client    S3PutAPI
	Presigner S3PresignAPI
	Bucket    string
	Prefix    string
}

// NewReceiptArchive builds an archive backed by the S3 client of cfg.
func NewReceiptArchive(cfg aws.Config, bucket string) *ReceiptArchive {
	client := s3.NewFromConfig(cfg)
	return &ReceiptArchive{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
		Prefix:    "receipts",
	}
}

func (a *ReceiptArchive) receiptKey(sessionKey string) string {
	return path.Join(a.Prefix, sessionKey+".json")
}

// Notify implements Notifier. Only finalizing events produce a receipt.
func (a *ReceiptArchive) Notify(ctx context.Context, ev models.SessionEvent) error {
	if !ev.Finalizing() {
		return nil
	}

	body, err := json.Marshal(Receipt{
		SessionKey:     ev.SessionKey,
		SessionID:      ev.SessionID,
		Outcome:        ev.Type,
		MatchTimestamp: ev.MatchTimestamp,
		FinalizedAt:    ev.At.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	key := a.receiptKey(ev.SessionKey)
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt %s: %w", key, err)
	}
	log.Printf("🧾 Stored receipt s3://%s/%s", a.Bucket, key)
	return nil
}

// GenerateReadURL generates a presigned URL for reading the receipt of a session
func (a *ReceiptArchive) GenerateReadURL(ctx context.Context, sessionKey string) (string, error) {
	presigned, err := a.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.receiptKey(sessionKey)),
	}, s3.WithPresignExpires(receiptURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign receipt: %w", err)
	}
	return presigned.URL, nil
}
