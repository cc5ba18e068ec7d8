package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/service"
)

const RetrainJobName = "retrain"

type Retrainer interface {
	Retrain(ctx context.Context) (*service.RetrainResult, error)
}

type RetrainJob struct {
	svc Retrainer
}

func NewRetrainJob(svc Retrainer) *RetrainJob {
	return &RetrainJob{svc: svc}
}

func (j *RetrainJob) Name() string {
	return RetrainJobName
}

// Run treats a retrain already started through the API as done.
func (j *RetrainJob) Run(ctx context.Context) error {
	res, err := j.svc.Retrain(ctx)
	if errors.Is(err, appErr.ErrRetrainRunning) {
		logutil.GetLogger(ctx).Info("retrain already running, skip")
		return nil
	}
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("scheduled retrain done",
		zap.Int64("model_version_id", res.ModelVersionID),
		zap.String("run_id", res.RunID),
	)
	return nil
}
