package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/archives"
	"github.com/lumen-support/backend/internal/models"
	"github.com/lumen-support/backend/pkg/queue"
	"github.com/lumen-support/backend/pkg/storage"
)

// ArchiveProcessor processes session archive jobs: upload the signal
// transcript to S3 and persist the archive row.
type ArchiveProcessor struct {
	archRepo *archives.Repository
	s3       *storage.S3
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewArchiveProcessor creates a session archive processor. s3 may be nil when
// object storage is not configured; archives are then persisted without a
// transcript key.
func NewArchiveProcessor(archRepo *archives.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{archRepo: archRepo, s3: s3, queue: q, logger: logger}
}

// Process executes one session archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	archive := &models.SessionArchive{
		ID:          uuid.New(),
		SessionCode: payload.SessionCode,
		FinalStatus: payload.FinalStatus,
		SignalCount: payload.SignalCount,
		StartedAt:   payload.StartedAt,
		EndedAt:     payload.EndedAt,
	}

	if p.s3 != nil && len(payload.Transcript) > 0 {
		key := storage.TranscriptKey(payload.SessionCode, archive.ID.String())
		body := bytes.NewReader(payload.Transcript)
		if _, err := p.s3.Upload(ctx, p.s3.TranscriptsBucket(), key, "application/json", body, int64(len(payload.Transcript))); err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
		archive.TranscriptS3Key = &key
	}

	if err := p.archRepo.Create(ctx, archive); err != nil {
		p.logger.Error("insert archive failed", zap.Error(err), zap.String("session_code", payload.SessionCode))
		return fmt.Errorf("insert archive: %w", err)
	}

	p.logger.Info("session archived",
		zap.String("session_code", payload.SessionCode),
		zap.String("final_status", payload.FinalStatus),
		zap.Int("signal_count", payload.SignalCount))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
