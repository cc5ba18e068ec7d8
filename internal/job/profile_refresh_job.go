package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const ProfileRefreshJobName = "profile_refresh"

type ProfileRefresher interface {
	RefreshAllProfiles(ctx context.Context) (int, error)
}

// ProfileRefreshJob recomputes customer content profiles between retrains
// so new purchases show up in similar-customer lookups.
type ProfileRefreshJob struct {
	svc ProfileRefresher
}

func NewProfileRefreshJob(svc ProfileRefresher) *ProfileRefreshJob {
	return &ProfileRefreshJob{svc: svc}
}

func (j *ProfileRefreshJob) Name() string {
	return ProfileRefreshJobName
}

func (j *ProfileRefreshJob) Run(ctx context.Context) error {
	n, err := j.svc.RefreshAllProfiles(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("customer profiles refreshed", zap.Int("count", n))
	return nil
}
