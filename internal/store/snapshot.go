package store

import (
	"context"
	"encoding/json"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

const snapshotKey = "store/snapshot.json"

// BlobSnapshot persists store contents using gocloud.dev/blob, supporting
// S3, GCS, Azure Blob Storage, and S3-compatible stores
type BlobSnapshot struct {
	bucket *blob.Bucket
}

func NewBlobSnapshot(
	ctx context.Context, bucketURL string,
) (*BlobSnapshot, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobSnapshot{bucket: bucket}, nil
}

// Save writes the full contents of the store to the bucket
func (s *BlobSnapshot) Save(ctx context.Context, src *MemoryStore) error {
	data, err := json.Marshal(src.Export())
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, snapshotKey, data, nil)
}

// Load merges a previously saved snapshot into the store. A bucket with
// no snapshot yet is not an error.
func (s *BlobSnapshot) Load(ctx context.Context, dst *MemoryStore) error {
	data, err := s.bucket.ReadAll(ctx, snapshotKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return err
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return err
	}
	return dst.Restore(dump)
}

func (s *BlobSnapshot) Close() error {
	return s.bucket.Close()
}
