package jobs

import (
	"context"
	"time"

	"anoa.com/yamdb/internal/logging"
	search "anoa.com/yamdb/internal/modules/search/service"
)

const (
	ReindexJobName           = "search-reindex"
	ConfirmationPurgeJobName = "confirmation-purge"
)

type Reindexer interface {
	Reindex(ctx context.Context, src search.TitleSource) (int, error)
}

// ReindexJob rebuilds the title search index from the database.
type ReindexJob struct {
	index    Reindexer
	titles   search.TitleSource
	schedule string
}

func NewReindexJob(index Reindexer, titles search.TitleSource, schedule string) *ReindexJob {
	return &ReindexJob{index: index, titles: titles, schedule: schedule}
}

func (j *ReindexJob) Name() string     { return ReindexJobName }
func (j *ReindexJob) Schedule() string { return j.schedule }

func (j *ReindexJob) Execute(ctx context.Context) error {
	n, err := j.index.Reindex(ctx, j.titles)
	if err != nil {
		return err
	}
	logging.Info().Int("titles", n).Msg("search index rebuilt")
	return nil
}

type ConfirmationPurger interface {
	PurgeExpiredConfirmations(ctx context.Context, now time.Time) (int64, error)
}

// ConfirmationPurgeJob clears expired signup confirmation codes.
type ConfirmationPurgeJob struct {
	users    ConfirmationPurger
	schedule string
	now      func() time.Time
}

func NewConfirmationPurgeJob(users ConfirmationPurger, schedule string) *ConfirmationPurgeJob {
	return &ConfirmationPurgeJob{users: users, schedule: schedule, now: time.Now}
}

func (j *ConfirmationPurgeJob) Name() string     { return ConfirmationPurgeJobName }
func (j *ConfirmationPurgeJob) Schedule() string { return j.schedule }

func (j *ConfirmationPurgeJob) Execute(ctx context.Context) error {
	n, err := j.users.PurgeExpiredConfirmations(ctx, j.now())
	if err != nil {
		return err
	}
	if n > 0 {
		logging.Info().Int64("users", n).Msg("purged expired confirmation codes")
	}
	return nil
}
