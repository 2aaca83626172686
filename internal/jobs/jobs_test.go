package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	search "anoa.com/yamdb/internal/modules/search/service"
	titleRepo "anoa.com/yamdb/internal/modules/title/repository"
	userRepo "anoa.com/yamdb/internal/modules/user/repository"
	"anoa.com/yamdb/internal/testutil"
)

type countingIndex struct {
	seen []uint
	err  error
}

func (c *countingIndex) Reindex(ctx context.Context, src search.TitleSource) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	err := src.EachBatch(ctx, 2, func(titles []*entity.Title) error {
		for _, t := range titles {
			c.seen = append(c.seen, t.ID)
		}
		return nil
	})
	return len(c.seen), err
}

type onDemandJob struct {
	runs int
}

func (j *onDemandJob) Name() string     { return "noop" }
func (j *onDemandJob) Schedule() string { return "" }
func (j *onDemandJob) Execute(ctx context.Context) error {
	j.runs++
	return ctx.Err()
}

func TestConfirmationPurgeJob(t *testing.T) {
	db := testutil.NewDB(t)
	stale := testutil.CreateUser(t, db, "stale", authz.RoleUser)
	fresh := testutil.CreateUser(t, db, "fresh", authz.RoleUser)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, db.Model(stale).Updates(map[string]interface{}{
		"confirmation_code_hash": "hash", "confirmation_expires_at": past,
	}).Error)
	require.NoError(t, db.Model(fresh).Updates(map[string]interface{}{
		"confirmation_code_hash": "hash", "confirmation_expires_at": future,
	}).Error)

	s := NewScheduler(time.Minute)
	require.NoError(t, s.Register(NewConfirmationPurgeJob(userRepo.NewUserRepository(db), "@hourly")))
	require.NoError(t, s.RunByName(context.Background(), ConfirmationPurgeJobName))

	var purged entity.User
	require.NoError(t, db.First(&purged, "id = ?", stale.ID).Error)
	assert.Empty(t, purged.ConfirmationCodeHash)
	assert.Nil(t, purged.ConfirmationExpiresAt)

	var kept entity.User
	require.NoError(t, db.First(&kept, "id = ?", fresh.ID).Error)
	assert.Equal(t, "hash", kept.ConfirmationCodeHash)
	assert.NotNil(t, kept.ConfirmationExpiresAt)
}

func TestReindexJob(t *testing.T) {
	db := testutil.NewDB(t)
	for _, name := range []string{"a", "b", "c"} {
		testutil.CreateTitle(t, db, name, 2000)
	}

	idx := &countingIndex{}
	job := NewReindexJob(idx, titleRepo.NewTitleRepository(db), "0 3 * * *")
	require.NoError(t, job.Execute(context.Background()))
	assert.Len(t, idx.seen, 3)

	idx.err = errors.New("meili down")
	assert.Error(t, job.Execute(context.Background()))
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(0)

	job := &onDemandJob{}
	require.NoError(t, s.Register(job))
	assert.Equal(t, []string{"noop"}, s.Names())

	require.NoError(t, s.RunByName(context.Background(), "noop"))
	assert.Equal(t, 1, job.runs)

	assert.Error(t, s.RunByName(context.Background(), "missing"))

	err := s.Register(NewReindexJob(&countingIndex{}, nil, "not a cron"))
	assert.Error(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
