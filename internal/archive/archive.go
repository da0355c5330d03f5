// Package archive exports ledger snapshots to S3-compatible object storage.
// Snapshots are a read-only export for audit and offsite backup; they never
// feed back into the store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/model"
)

// Archiver wraps MinIO/S3 interactions for ledger snapshot objects.
type Archiver struct {
	client *minio.Client
	bucket string
	region string
	now    func() time.Time
}

// snapshot is the stored object layout.
type snapshot struct {
	TakenAt time.Time            `json:"takenAt"`
	Count   int                  `json:"count"`
	Batches []*model.BatchRecord `json:"batches"`
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Archiver, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Archiver{
		client: client,
		bucket: cfg.SnapshotBucket,
		region: cfg.S3Region,
		now:    time.Now,
	}, nil
}

// EnsureBucket makes sure the snapshot bucket exists before use.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Archive uploads the full set of records as one timestamped JSON object and
// returns the object key.
func (a *Archiver) Archive(ctx context.Context, records []*model.BatchRecord) (string, error) {
	takenAt := a.now().UTC()
	data, err := encodeSnapshot(takenAt, records)
	if err != nil {
		return "", err
	}
	key := objectKey(takenAt)
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := a.client.PutObject(ctx, a.bucket, key, reader, int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// encodeSnapshot builds the stored object payload: every record, plus the
// capture time and count for quick sanity checks on the object itself.
func encodeSnapshot(takenAt time.Time, records []*model.BatchRecord) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot{
		TakenAt: takenAt,
		Count:   len(records),
		Batches: records,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func objectKey(takenAt time.Time) string {
	return fmt.Sprintf("snapshots/%s.json", takenAt.Format(time.RFC3339))
}
