package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/fetch"
	"github.com/joseph-ayodele/submissions-pipeline/internal/metrics"
)

// result is the per-submission outcome. An empty outcome means skipped.
type result struct {
	submissionID uuid.UUID
	outcome      constants.SubmissionStatus
	stage        string
	err          string
	slides       int
}

// processOne takes a single pending submission through the stages. Once the
// submission is claimed every write uses a context that ignores cancellation
// so the submission never stays processing.
func (o *Orchestrator) processOne(ctx context.Context, sub entity.Submission) result {
	res := result{submissionID: sub.ID}
	log := o.logger.With("submission_id", sub.ID, "project_id", sub.ProjectID, "team", sub.TeamName)

	fetchJob := o.lookupJob(ctx, sub, constants.JobTypeFetch, log)

	claimed, err := o.subs.Claim(ctx, sub.ID)
	switch {
	case err != nil:
		log.Error("submission claim failed", "err", err)
	case !claimed:
		log.Info("pipeline.submission.skipped", "reason", "no longer pending")
		return res
	}
	finalCtx := context.WithoutCancel(ctx)

	if fetchJob != nil {
		if err := o.jobs.MarkRunning(ctx, fetchJob.ID); err != nil {
			log.Warn("fetch job start failed", "job_id", fetchJob.ID, "err", err)
		}
	}

	start := time.Now()
	data, err := o.fetcher.Fetch(ctx, fetch.Ref{
		SubmissionID: sub.ID.String(),
		FileID:       sub.DriveFileID,
		FileName:     sub.DriveFileName,
	})
	metrics.ObserveStage(StageFetch, err, time.Since(start))
	if err != nil {
		log.Error("pipeline.fetch.failed", "file_id", sub.DriveFileID, "err", err)
		o.finish(finalCtx, sub.ID, constants.SubmissionFailed, log)
		if fetchJob != nil {
			out, rerr := o.jobs.ApplyRetryPolicy(finalCtx, fetchJob.ID, FetchErrorMessage(sub.DriveFileID))
			if rerr != nil {
				log.Error("retry policy failed", "job_id", fetchJob.ID, "err", rerr)
			} else {
				log.Info("retry policy applied",
					"job_id", fetchJob.ID,
					"job_status", out.Status,
					"retry_count", out.RetryCount,
					"max_retries", out.MaxRetries,
				)
			}
		}
		res.outcome, res.stage, res.err = constants.SubmissionFailed, StageFetch, err.Error()
		return res
	}
	if fetchJob != nil {
		if err := o.jobs.MarkCompleted(finalCtx, fetchJob.ID); err != nil {
			log.Warn("fetch job completion failed", "job_id", fetchJob.ID, "err", err)
		}
	}

	extractJob := o.lookupJob(ctx, sub, constants.JobTypeExtract, log)
	if extractJob != nil {
		if err := o.jobs.MarkRunning(ctx, extractJob.ID); err != nil {
			log.Warn("extract job start failed", "job_id", extractJob.ID, "err", err)
		}
	}

	stage := StageExtract
	start = time.Now()
	records, err := o.extractor.Extract(ctx, data, sub.ID.String())
	metrics.ObserveStage(StageExtract, err, time.Since(start))
	var stored int
	if err == nil {
		// extracted slides are kept even when the batch is cancelled now
		stage = StageStore
		stored, err = o.slides.StoreAll(finalCtx, sub.ID, sub.ProjectID, records)
	}
	if err != nil {
		log.Error("pipeline."+stage+".failed", "err", err)
		o.finish(finalCtx, sub.ID, constants.SubmissionFailed, log)
		if extractJob != nil {
			if jerr := o.jobs.MarkFailed(finalCtx, extractJob.ID, err.Error()); jerr != nil {
				log.Warn("extract job failure not recorded", "job_id", extractJob.ID, "err", jerr)
			}
		}
		res.outcome, res.stage, res.err = constants.SubmissionFailed, stage, err.Error()
		return res
	}

	o.finish(finalCtx, sub.ID, constants.SubmissionCompleted, log)
	if extractJob != nil {
		if err := o.jobs.MarkCompleted(finalCtx, extractJob.ID); err != nil {
			log.Warn("extract job completion failed", "job_id", extractJob.ID, "err", err)
		}
	}
	metrics.SlidesStored.Add(float64(stored))
	log.Info("pipeline.submission.completed", "slides", stored)

	res.outcome, res.slides = constants.SubmissionCompleted, stored
	return res
}

// lookupJob treats a failed lookup like a missing job: the submission is
// processed without ledger tracking for that stage.
func (o *Orchestrator) lookupJob(ctx context.Context, sub entity.Submission, jobType constants.JobType, log *slog.Logger) *entity.ProcessingJob {
	job, err := o.jobs.FindQueued(ctx, sub.ID, sub.ProjectID, jobType)
	if err != nil {
		log.Warn("job lookup failed", "job_type", jobType, "err", err)
		return nil
	}
	if job == nil {
		log.Debug("no queued job", "job_type", jobType)
	}
	return job
}

func (o *Orchestrator) finish(ctx context.Context, id uuid.UUID, status constants.SubmissionStatus, log *slog.Logger) {
	if err := o.subs.SetStatus(ctx, id, status); err != nil {
		log.Error("submission status update failed", "status", status, "err", err)
	}
}
