package comment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/comment/dto"
	"anoa.com/yamdb/internal/modules/comment/repository"
	comment "anoa.com/yamdb/internal/modules/comment/service"
	"anoa.com/yamdb/internal/testutil"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/ratelimiter"
)

type fixture struct {
	db     *gorm.DB
	svc    comment.CommentService
	title  *entity.Title
	review *entity.Review
	alice  authz.Principal
	bob    authz.Principal
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	alice := testutil.CreateUser(t, db, "alice", authz.RoleUser)
	bob := testutil.CreateUser(t, db, "bob", authz.RoleUser)
	title := testutil.CreateTitle(t, db, "Ran", 1985)

	rev := &entity.Review{TitleID: title.ID, AuthorID: alice.ID, Text: "epic", Score: 9}
	require.NoError(t, db.Omit("Author", "Title").Create(rev).Error)

	return &fixture{
		db:     db,
		svc:    comment.NewCommentService(repository.NewCommentRepository(db), authz.MustNewEngine(), ratelimiter.New(nil, nil)),
		title:  title,
		review: rev,
		alice:  alice.Principal(),
		bob:    bob.Principal(),
	}
}

func TestCommentLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateComment(ctx, f.bob, f.title.ID, f.review.ID, dto.CreateCommentRequest{Text: "agreed"})
	require.NoError(t, err)
	assert.Equal(t, "bob", created.Author)
	assert.Equal(t, "agreed", created.Text)

	got, err := f.svc.GetComment(ctx, f.title.ID, f.review.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Author)

	updated, err := f.svc.UpdateComment(ctx, f.bob, f.title.ID, f.review.ID, created.ID, dto.UpdateCommentRequest{Text: "fully agreed"})
	require.NoError(t, err)
	assert.Equal(t, "fully agreed", updated.Text)

	page, err := f.svc.ListComments(ctx, f.title.ID, f.review.ID, commonDto.PaginationQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Count)
	assert.Equal(t, commonDto.DefaultLimit, page.Limit)

	require.NoError(t, f.svc.DeleteComment(ctx, f.bob, f.title.ID, f.review.ID, created.ID))

	_, err = f.svc.GetComment(ctx, f.title.ID, f.review.ID, created.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCommentOwnerOrStaff(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateComment(ctx, f.bob, f.title.ID, f.review.ID, dto.CreateCommentRequest{Text: "mine"})
	require.NoError(t, err)

	_, err = f.svc.UpdateComment(ctx, f.alice, f.title.ID, f.review.ID, created.ID, dto.UpdateCommentRequest{Text: "hijacked"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	err = f.svc.DeleteComment(ctx, authz.Anonymous, f.title.ID, f.review.ID, created.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	got, err := f.svc.GetComment(ctx, f.title.ID, f.review.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Text)

	mod := testutil.CreateUser(t, f.db, "mod", authz.RoleModerator).Principal()
	require.NoError(t, f.svc.DeleteComment(ctx, mod, f.title.ID, f.review.ID, created.ID))
}

func TestCommentReviewMustBelongToTitle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateTitle(t, f.db, "Kagemusha", 1980)

	_, err := f.svc.CreateComment(ctx, f.bob, other.ID, f.review.ID, dto.CreateCommentRequest{Text: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.ListComments(ctx, other.ID, f.review.ID, commonDto.PaginationQuery{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&entity.Comment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAnonymousCannotComment(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateComment(context.Background(), authz.Anonymous, f.title.ID, f.review.ID, dto.CreateCommentRequest{Text: "x"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestBlankCommentCheckedAfterAuthorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateComment(ctx, authz.Anonymous, f.title.ID, f.review.ID, dto.CreateCommentRequest{})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.svc.CreateComment(ctx, f.bob, f.title.ID, f.review.ID, dto.CreateCommentRequest{})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "text")

	created, err := f.svc.CreateComment(ctx, f.bob, f.title.ID, f.review.ID, dto.CreateCommentRequest{Text: "mine"})
	require.NoError(t, err)

	_, err = f.svc.UpdateComment(ctx, f.alice, f.title.ID, f.review.ID, created.ID, dto.UpdateCommentRequest{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.UpdateComment(ctx, f.bob, f.title.ID, f.review.ID, created.ID, dto.UpdateCommentRequest{})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "text")
}
