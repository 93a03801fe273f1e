// Package storage archives JSON documents in S3-compatible object storage.
//
// Client is the subset of the MinIO client the archive needs, so tests can swap in
// core/storage/mocks. Archive writes one document per key and maps a missing object to
// apperror.ErrNotFound.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	archive := storage.NewArchive(client, cfg)
//	err = archive.EnsureBucket(ctx)
//	err = archive.Put(ctx, "sessions/<save>/<session>.json", snapshot)
package storage
