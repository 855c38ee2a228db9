// Package orchestrator runs the training-submission workflow, the one write
// path that spans two independent backends with no shared transaction.
package orchestrator

import (
	"context"

	"github.com/pacetrack/gateway/internal/clients/identity"
	"github.com/pacetrack/gateway/internal/clients/training"
	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/logging"
)

// TrainingService is the slice of the training backend the workflow needs.
type TrainingService interface {
	Create(ctx context.Context, sub training.Submission) (*training.Training, error)
	WeeklyAggregate(ctx context.Context) (*training.WeeklyAggregate, error)
}

// StatsPusher is the slice of the identity backend the workflow needs.
type StatsPusher interface {
	PushStats(ctx context.Context, stats identity.TrainingStats) ([]identity.Badge, error)
}

// Orchestrator coordinates the submission workflow. It is stateless and safe
// for concurrent use; concurrent submissions from the same caller are not
// serialized, so two racing submissions may overwrite each other's pushed
// weekly total (last write wins).
type Orchestrator struct {
	trainings TrainingService
	identity  StatsPusher
	logger    *logging.Logger
}

// New creates an orchestrator over the two backend adapters.
func New(trainings TrainingService, identity StatsPusher, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		trainings: trainings,
		identity:  identity,
		logger:    logger,
	}
}

// Result is a completed submission: the persisted record, the re-read
// weekly aggregate, and any badges the identity service newly granted.
type Result struct {
	Training  *training.Training        `json:"training"`
	Aggregate *training.WeeklyAggregate `json:"weekly"`
	Badges    []identity.Badge          `json:"badges"`
}

// SubmitTraining runs the workflow strictly in sequence:
//
//  1. persist the submission in the training service;
//  2. re-read the caller's weekly aggregate, which reflects step 1 by the
//     backend's read-after-write contract;
//  3. push the updated stats to the identity service and collect newly
//     granted badges.
//
// If step 1 fails nothing was committed and the whole submission is safe to
// retry (TRAINING_WRITE_FAILED). If step 2 or 3 fails the training record
// is already durable: the error is STATS_UPDATE_FAILED carrying the
// assigned training id, and recovery is forward-only. The training is
// never rolled back; a retry targets the stats steps alone. Cancelling ctx
// stops waiting on the in-flight call; it never undoes an acknowledged
// write.
func (o *Orchestrator) SubmitTraining(ctx context.Context, sub training.Submission) (*Result, error) {
	created, err := o.trainings.Create(ctx, sub)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Training write failed")
		return nil, errors.TrainingWriteFailed(err)
	}

	aggregate, err := o.trainings.WeeklyAggregate(ctx)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"training_id": created.ID,
		}).Error("Weekly aggregate read failed after training write")
		return nil, errors.StatsUpdateFailed(created.ID, err)
	}

	badges, err := o.identity.PushStats(ctx, identity.TrainingStats{
		Rhythm:     sub.Rhythm,
		DistanceKM: sub.DistanceKM,
		TotalKM:    aggregate.TotalKM,
	})
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"training_id": created.ID,
		}).Error("Stats push failed after training write")
		return nil, errors.StatsUpdateFailed(created.ID, err)
	}

	if badges == nil {
		badges = []identity.Badge{}
	}

	o.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"training_id": created.ID,
		"total_km":    aggregate.TotalKM,
		"new_badges":  len(badges),
	}).Info("Training submission completed")

	return &Result{
		Training:  created,
		Aggregate: aggregate,
		Badges:    badges,
	}, nil
}
