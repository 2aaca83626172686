package review_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/review/dto"
	"anoa.com/yamdb/internal/modules/review/repository"
	review "anoa.com/yamdb/internal/modules/review/service"
	"anoa.com/yamdb/internal/testutil"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/ratelimiter"
)

type ratingEvent struct {
	titleID uint
	rating  *float64
}

type recordingListener struct {
	events []ratingEvent
}

func (l *recordingListener) OnRatingChanged(_ context.Context, titleID uint, rating *float64) error {
	l.events = append(l.events, ratingEvent{titleID: titleID, rating: rating})
	return nil
}

type failingListener struct{}

func (failingListener) OnRatingChanged(context.Context, uint, *float64) error {
	return errors.New("index offline")
}

type denyLimiter struct{}

func (denyLimiter) Acquire(context.Context, string, ratelimiter.Scope) (func(), error) {
	return nil, &ratelimiter.RateLimitError{Message: "slow down"}
}

type fixture struct {
	db       *gorm.DB
	svc      review.ReviewService
	listener *recordingListener
	title    *entity.Title
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	listener := &recordingListener{}
	svc := review.NewReviewService(
		repository.NewReviewRepository(db),
		authz.MustNewEngine(),
		ratelimiter.New(nil, nil),
		listener, failingListener{},
	)
	return &fixture{
		db:       db,
		svc:      svc,
		listener: listener,
		title:    testutil.CreateTitle(t, db, "Solaris", 1972),
	}
}

func (f *fixture) rating(t *testing.T) *float64 {
	t.Helper()
	var title entity.Title
	require.NoError(t, f.db.First(&title, f.title.ID).Error)
	return title.Rating
}

func (f *fixture) principal(t *testing.T, username string, role authz.Role) authz.Principal {
	t.Helper()
	u := testutil.CreateUser(t, f.db, username, role)
	return u.Principal()
}

func score(n int) *int { return &n }

func create(t *testing.T, f *fixture, p authz.Principal, s int) *dto.ReviewResponse {
	t.Helper()
	res, err := f.svc.CreateReview(context.Background(), p, f.title.ID, dto.CreateReviewRequest{Text: "review by " + p.Username, Score: score(s)})
	require.NoError(t, err)
	return res
}

func TestRatingFollowsReviewMutations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)
	bob := f.principal(t, "bob", authz.RoleUser)

	assert.Nil(t, f.rating(t))

	first := create(t, f, alice, 5)
	assert.Equal(t, "alice", first.Author)
	require.NotNil(t, f.rating(t))
	assert.InDelta(t, 5.0, *f.rating(t), 1e-9)

	create(t, f, bob, 3)
	assert.InDelta(t, 4.0, *f.rating(t), 1e-9)

	require.NoError(t, f.svc.DeleteReview(ctx, alice, f.title.ID, first.ID))
	assert.InDelta(t, 3.0, *f.rating(t), 1e-9)

	require.Len(t, f.listener.events, 3)
	last := f.listener.events[2]
	assert.Equal(t, f.title.ID, last.titleID)
	assert.InDelta(t, 3.0, *last.rating, 1e-9)
}

func TestRatingIsExactMean(t *testing.T) {
	f := setup(t)
	create(t, f, f.principal(t, "a", authz.RoleUser), 7)
	create(t, f, f.principal(t, "b", authz.RoleUser), 8)
	create(t, f, f.principal(t, "c", authz.RoleUser), 8)

	assert.InDelta(t, 23.0/3.0, *f.rating(t), 1e-9)
}

func TestDuplicateCreateThenPatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)

	first := create(t, f, alice, 5)

	_, err := f.svc.CreateReview(ctx, alice, f.title.ID, dto.CreateReviewRequest{Text: "again", Score: score(9)})
	assert.ErrorIs(t, err, apperror.ErrDuplicateReview)

	var count int64
	require.NoError(t, f.db.Model(&entity.Review{}).Where("title_id = ?", f.title.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	updated, err := f.svc.UpdateReview(ctx, alice, f.title.ID, first.ID, dto.UpdateReviewRequest{Score: score(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Score)
	assert.Equal(t, first.Text, updated.Text)
	assert.InDelta(t, 7.0, *f.rating(t), 1e-9)
}

func TestScoreBounds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		score int
		ok    bool
	}{
		{0, false},
		{1, true},
		{10, true},
		{11, false},
		{-3, false},
	}

	for i, tt := range tests {
		p := f.principal(t, "scorer"+string(rune('a'+i)), authz.RoleUser)
		_, err := f.svc.CreateReview(ctx, p, f.title.ID, dto.CreateReviewRequest{Text: "t", Score: score(tt.score)})
		if tt.ok {
			assert.NoError(t, err, "score %d", tt.score)
			continue
		}
		var vErr *apperror.ValidationError
		require.ErrorAs(t, err, &vErr, "score %d", tt.score)
		assert.Contains(t, vErr.Fields, "score")
	}

	alice := f.principal(t, "alice", authz.RoleUser)
	res := create(t, f, alice, 4)
	_, err := f.svc.UpdateReview(ctx, alice, f.title.ID, res.ID, dto.UpdateReviewRequest{Score: score(12)})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestNonOwnerCannotMutate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)
	mallory := f.principal(t, "mallory", authz.RoleUser)

	res := create(t, f, alice, 6)

	_, err := f.svc.UpdateReview(ctx, mallory, f.title.ID, res.ID, dto.UpdateReviewRequest{Score: score(1)})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	err = f.svc.DeleteReview(ctx, mallory, f.title.ID, res.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := f.svc.GetReview(ctx, f.title.ID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Score)
	assert.InDelta(t, 6.0, *f.rating(t), 1e-9)
}

func TestStaffCanMutateOthersReviews(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)
	mod := f.principal(t, "mod", authz.RoleModerator)

	res := create(t, f, alice, 6)

	updated, err := f.svc.UpdateReview(ctx, mod, f.title.ID, res.ID, dto.UpdateReviewRequest{Score: score(2)})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Author)

	require.NoError(t, f.svc.DeleteReview(ctx, mod, f.title.ID, res.ID))
	assert.Nil(t, f.rating(t))
}

func TestAnonymousCannotCreate(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateReview(context.Background(), authz.Anonymous, f.title.ID, dto.CreateReviewRequest{Text: "t", Score: score(5)})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestMissingTitleAndReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)

	_, err := f.svc.CreateReview(ctx, alice, 9999, dto.CreateReviewRequest{Text: "t", Score: score(5)})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.ListReviews(ctx, 9999, commonDto.PaginationQuery{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	res := create(t, f, alice, 5)
	other := testutil.CreateTitle(t, f.db, "Stalker", 1979)

	_, err = f.svc.GetReview(ctx, other.ID, res.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = f.svc.DeleteReview(ctx, alice, other.ID, res.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteReviewCascadesComments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.principal(t, "alice", authz.RoleUser)
	bob := f.principal(t, "bob", authz.RoleUser)

	doomed := create(t, f, alice, 2)
	kept := create(t, f, bob, 8)

	for _, text := range []string{"first", "second"} {
		require.NoError(t, f.db.Create(&entity.Comment{ReviewID: doomed.ID, AuthorID: bob.UserID, Text: text}).Error)
	}
	require.NoError(t, f.db.Create(&entity.Comment{ReviewID: kept.ID, AuthorID: alice.UserID, Text: "stays"}).Error)

	require.NoError(t, f.svc.DeleteReview(ctx, alice, f.title.ID, doomed.ID))

	var orphans int64
	require.NoError(t, f.db.Model(&entity.Comment{}).Where("review_id = ?", doomed.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	var remaining int64
	require.NoError(t, f.db.Model(&entity.Comment{}).Where("review_id = ?", kept.ID).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)

	assert.InDelta(t, 8.0, *f.rating(t), 1e-9)
}

func TestListReviewsPaginates(t *testing.T) {
	f := setup(t)
	for _, name := range []string{"a", "b", "c"} {
		create(t, f, f.principal(t, name, authz.RoleUser), 5)
	}

	page, err := f.svc.ListReviews(context.Background(), f.title.ID, commonDto.PaginationQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, 2, page.Limit)
}

func TestRateLimitedCreateLeavesNoReview(t *testing.T) {
	db := testutil.NewDB(t)
	title := testutil.CreateTitle(t, db, "Mirror", 1975)
	alice := testutil.CreateUser(t, db, "alice", authz.RoleUser).Principal()

	svc := review.NewReviewService(repository.NewReviewRepository(db), authz.MustNewEngine(), denyLimiter{})

	_, err := svc.CreateReview(context.Background(), alice, title.ID, dto.CreateReviewRequest{Text: "t", Score: score(5)})
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	var count int64
	require.NoError(t, db.Model(&entity.Review{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBlankFieldsCheckedAfterAuthorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateReview(ctx, authz.Anonymous, f.title.ID, dto.CreateReviewRequest{})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	alice := f.principal(t, "alice", authz.RoleUser)
	_, err = f.svc.CreateReview(ctx, alice, f.title.ID, dto.CreateReviewRequest{Score: score(5)})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "text")

	_, err = f.svc.CreateReview(ctx, alice, f.title.ID, dto.CreateReviewRequest{Text: "fine"})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "score")

	res := create(t, f, alice, 7)
	blank := ""

	mallory := f.principal(t, "mallory", authz.RoleUser)
	_, err = f.svc.UpdateReview(ctx, mallory, f.title.ID, res.ID, dto.UpdateReviewRequest{Text: &blank})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.UpdateReview(ctx, alice, f.title.ID, res.ID, dto.UpdateReviewRequest{Text: &blank})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "text")

	got, err := f.svc.GetReview(ctx, f.title.ID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "review by alice", got.Text)
}
