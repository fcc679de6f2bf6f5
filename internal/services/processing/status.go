package processing

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

// SubmissionView is a submission with its job ledger and slide count.
type SubmissionView struct {
	entity.Submission
	Jobs   []entity.ProcessingJob `json:"jobs"`
	Slides int                    `json:"slide_count"`
}

// ProjectStatus summarizes where a project's submissions stand.
type ProjectStatus struct {
	Project     *entity.Project  `json:"project"`
	Counts      map[string]int   `json:"counts"`
	Slides      int              `json:"slide_count"`
	Submissions []SubmissionView `json:"submissions"`
}

var submissionStatuses = []constants.SubmissionStatus{
	constants.SubmissionPending,
	constants.SubmissionProcessing,
	constants.SubmissionCompleted,
	constants.SubmissionFailed,
}

// ProjectStatus returns the project, per-status counts and every submission
// with its jobs.
func (s *Service) ProjectStatus(ctx context.Context, rawProjectID string) (*ProjectStatus, error) {
	projectID, err := s.project(ctx, rawProjectID)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, common.ToStatus(err)
	}

	out := &ProjectStatus{Project: p, Counts: make(map[string]int, len(submissionStatuses))}
	for _, st := range submissionStatuses {
		n, err := s.subs.CountByStatus(ctx, projectID, st)
		if err != nil {
			return nil, common.ToStatus(err)
		}
		out.Counts[string(st)] = n
	}

	subs, err := s.subs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	jobs, err := s.jobs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	bySub := make(map[uuid.UUID][]entity.ProcessingJob, len(subs))
	for _, j := range jobs {
		bySub[j.SubmissionID] = append(bySub[j.SubmissionID], j)
	}

	out.Submissions = make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		n, err := s.slides.CountBySubmission(ctx, sub.ID)
		if err != nil {
			return nil, common.ToStatus(err)
		}
		out.Slides += n
		out.Submissions = append(out.Submissions, SubmissionView{Submission: sub, Jobs: bySub[sub.ID], Slides: n})
	}
	return out, nil
}

// ListSlides returns the stored slides of a submission ordered by slide number.
func (s *Service) ListSlides(ctx context.Context, rawSubmissionID string) ([]entity.Slide, error) {
	id, err := parseID("submission_id", rawSubmissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.subs.GetByID(ctx, id); err != nil {
		return nil, common.ToStatus(err)
	}
	slides, err := s.slides.ListBySubmission(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return slides, nil
}
