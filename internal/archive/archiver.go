// Package archive persists encoded sensor payloads to disk and
// optionally to S3-compatible object storage. Payloads are appended to
// per-device daily JSONL files; completed day files are uploaded and
// old files are removed after the retention window.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/util"
)

const (
	// uploadQueueSize bounds pending uploads; overflow is dropped with a warning.
	uploadQueueSize = 64

	// uploadTimeout bounds a single S3 PutObject call.
	uploadTimeout = 5 * time.Minute

	archiveContentType = "application/x-ndjson"
)

// Record is one archived payload line.
type Record struct {
	Timestamp   string `json:"timestamp"`
	Device      string `json:"device"`
	Cycle       int    `json:"cycle"`
	Transmitted bool   `json:"transmitted"`
	Payload     string `json:"payload"`
}

// uploadRequest represents a file to be uploaded to S3.
type uploadRequest struct {
	localPath string
	s3Key     string
}

// Archiver appends payload records to daily files and manages uploads.
// It is safe for concurrent use by multiple devices.
type Archiver struct {
	cfg *config.Config

	mu sync.Mutex
	// openDates tracks the current date string per device so day
	// rollovers can queue the finished file for upload.
	openDates map[string]string
	s3Client  *s3.Client

	uploadQueue chan uploadRequest
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// New creates an Archiver and starts its upload worker.
func New(cfg *config.Config) (*Archiver, error) {
	snap := cfg.Snapshot()
	if snap.ArchiveStorageMode != config.StorageS3 {
		if err := os.MkdirAll(snap.ArchiveLocalPath, 0o755); err != nil {
			return nil, util.WrapError("create archive directory", err)
		}
	}

	a := &Archiver{
		cfg:         cfg,
		openDates:   make(map[string]string),
		uploadQueue: make(chan uploadRequest, uploadQueueSize),
		stopCh:      make(chan struct{}),
	}

	a.wg.Add(1)
	go a.uploadWorker()

	return a, nil
}

// Append writes one payload record for the given device.
func (a *Archiver) Append(deviceID string, cycle int, encoded string, transmitted bool) error {
	now := time.Now()
	rec := Record{
		Timestamp:   now.UTC().Format(time.RFC3339),
		Device:      deviceID,
		Cycle:       cycle,
		Transmitted: transmitted,
		Payload:     encoded,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return util.WrapError("marshal archive record", err)
	}

	snap := a.cfg.Snapshot()
	date := now.Format(time.DateOnly)
	path := a.filePath(snap.ArchiveLocalPath, deviceID, date)

	a.mu.Lock()
	prev := a.openDates[deviceID]
	a.openDates[deviceID] = date
	a.mu.Unlock()

	// Day rollover: the previous file is complete, hand it off
	if prev != "" && prev != date {
		a.queueForUpload(&snap, a.filePath(snap.ArchiveLocalPath, deviceID, prev))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open archive file", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return util.WrapError("write archive record", err)
	}

	return nil
}

// filePath returns the daily archive file for a device.
func (a *Archiver) filePath(dir, deviceID, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", deviceID, date))
}

// queueForUpload queues a completed file for S3 upload when the storage
// mode requires it.
func (a *Archiver) queueForUpload(snap *config.Snapshot, path string) {
	if snap.ArchiveStorageMode == config.StorageLocal {
		return
	}
	if !snap.ArchiveS3.IsConfigured() {
		slog.Warn("S3 not configured but storage mode requires it", "mode", snap.ArchiveStorageMode)
		return
	}

	select {
	case a.uploadQueue <- uploadRequest{
		localPath: path,
		s3Key:     "payloads/" + filepath.Base(path),
	}:
		slog.Info("queued archive for upload", "file", filepath.Base(path))
	default:
		slog.Warn("archive upload queue full", "file", filepath.Base(path))
	}
}

// uploadWorker processes the upload queue, draining remaining items on shutdown.
func (a *Archiver) uploadWorker() {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopCh:
			for {
				select {
				case req := <-a.uploadQueue:
					a.uploadFile(req)
				default:
					return
				}
			}
		case req := <-a.uploadQueue:
			a.uploadFile(req)
		}
	}
}

// uploadFile uploads to S3 and deletes the local file in S3-only mode.
func (a *Archiver) uploadFile(req uploadRequest) {
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		uploadTimeout,
		errors.New("s3 upload timeout"),
	)
	defer cancel()

	file, err := os.Open(req.localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Error("failed to open archive for upload", "path", req.localPath, "error", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close archive after upload", "error", err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		slog.Error("failed to stat archive file", "path", req.localPath, "error", err)
		return
	}

	client, err := a.getOrCreateS3Client()
	if err != nil {
		slog.Error("failed to create S3 client", "error", err)
		return
	}

	snap := a.cfg.Snapshot()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(snap.ArchiveS3.Bucket),
		Key:           aws.String(req.s3Key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(archiveContentType),
	})
	if err != nil {
		slog.Error("archive upload failed", "s3_key", req.s3Key, "error", err)
		return
	}

	slog.Info("archive upload completed", "s3_key", req.s3Key)

	// S3-only mode keeps no local copy after a successful upload
	if snap.ArchiveStorageMode == config.StorageS3 {
		if err := os.Remove(req.localPath); err != nil {
			slog.Warn("failed to delete archive after upload", "path", req.localPath, "error", err)
		}
	}
}

// getOrCreateS3Client returns the cached S3 client, creating it if needed.
func (a *Archiver) getOrCreateS3Client() (*s3.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.s3Client != nil {
		return a.s3Client, nil
	}

	snap := a.cfg.Snapshot()
	client, err := createS3Client(&snap.ArchiveS3)
	if err != nil {
		return nil, err
	}
	a.s3Client = client
	return client, nil
}

// Cleanup removes local archive files older than the retention window.
func (a *Archiver) Cleanup() error {
	snap := a.cfg.Snapshot()
	if snap.ArchiveLocalPath == "" {
		return nil
	}

	entries, err := os.ReadDir(snap.ArchiveLocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return util.WrapError("read archive directory", err)
	}

	cutoff := time.Now().AddDate(0, 0, -snap.ArchiveRetentionDays)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		date, ok := util.ExtractDateFromFilename(entry.Name())
		if !ok {
			continue
		}
		if date.Before(cutoff) {
			path := filepath.Join(snap.ArchiveLocalPath, entry.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove expired archive", "path", path, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		slog.Info("archive retention cleanup", "removed", removed, "retention_days", snap.ArchiveRetentionDays)
	}

	return nil
}

// Close stops the upload worker after queuing any still-open day files,
// then waits for the queue to drain.
func (a *Archiver) Close() {
	snap := a.cfg.Snapshot()

	a.mu.Lock()
	open := make([]string, 0, len(a.openDates))
	for deviceID, date := range a.openDates {
		open = append(open, a.filePath(snap.ArchiveLocalPath, deviceID, date))
	}
	a.openDates = make(map[string]string)
	a.mu.Unlock()

	for _, path := range open {
		a.queueForUpload(&snap, path)
	}

	close(a.stopCh)
	a.wg.Wait()
}
