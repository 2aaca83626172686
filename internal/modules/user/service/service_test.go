package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/user/dto"
	"anoa.com/yamdb/internal/modules/user/repository"
	user "anoa.com/yamdb/internal/modules/user/service"
	"anoa.com/yamdb/internal/testutil"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
)

type ratingRecorder map[uint]*float64

func (r ratingRecorder) OnRatingChanged(_ context.Context, titleID uint, rating *float64) error {
	r[titleID] = rating
	return nil
}

func setup(t *testing.T) (*gorm.DB, user.UserService, ratingRecorder) {
	t.Helper()
	db := testutil.NewDB(t)
	rec := ratingRecorder{}
	return db, user.NewUserService(repository.NewUserRepository(db), authz.MustNewEngine(), rec), rec
}

func strPtr(s string) *string { return &s }

func TestUpdateMeDiscardsRoleForRegularUser(t *testing.T) {
	db, svc, _ := setup(t)
	me := testutil.CreateUser(t, db, "alice", authz.RoleUser).Principal()

	res, err := svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{
		Role: strPtr("admin"),
		Bio:  strPtr("film buff"),
	})
	require.NoError(t, err)
	assert.Equal(t, "user", res.Role)
	assert.Equal(t, "film buff", res.Bio)

	var stored entity.User
	require.NoError(t, db.First(&stored, "id = ?", me.UserID).Error)
	assert.Equal(t, authz.RoleUser, stored.Role)
	assert.Equal(t, "film buff", stored.Bio)
}

func TestUpdateMeModeratorCannotPromote(t *testing.T) {
	db, svc, _ := setup(t)
	me := testutil.CreateUser(t, db, "mod", authz.RoleModerator).Principal()

	res, err := svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{Role: strPtr("admin")})
	require.NoError(t, err)
	assert.Equal(t, "moderator", res.Role)
}

func TestUpdateMeAdminAppliesRole(t *testing.T) {
	db, svc, _ := setup(t)
	me := testutil.CreateUser(t, db, "boss", authz.RoleAdmin).Principal()

	res, err := svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{Role: strPtr("moderator")})
	require.NoError(t, err)
	assert.Equal(t, "moderator", res.Role)

	var stored entity.User
	require.NoError(t, db.First(&stored, "id = ?", me.UserID).Error)
	assert.Equal(t, authz.RoleModerator, stored.Role)
}

func TestUpdateMeValidation(t *testing.T) {
	db, svc, _ := setup(t)
	me := testutil.CreateUser(t, db, "alice", authz.RoleUser).Principal()
	testutil.CreateUser(t, db, "bob", authz.RoleUser)

	_, err := svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{Username: strPtr("me")})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "username")

	_, err = svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{Email: strPtr("BOB@example.com")})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")

	res, err := svc.UpdateMe(context.Background(), me, dto.UpdateUserRequest{Email: strPtr("  Alice@Example.COM ")})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.Email)

	_, err = svc.UpdateMe(context.Background(), authz.Anonymous, dto.UpdateUserRequest{})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAdminUserManagement(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "root", authz.RoleAdmin).Principal()
	regular := testutil.CreateUser(t, db, "joe", authz.RoleUser).Principal()

	created, err := svc.CreateUser(ctx, admin, dto.CreateUserRequest{Username: "newbie", Email: "NewBie@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user", created.Role)
	assert.Equal(t, "newbie@example.com", created.Email)

	_, err = svc.CreateUser(ctx, admin, dto.CreateUserRequest{Username: "newbie", Email: "other@example.com"})
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "username")

	_, err = svc.CreateUser(ctx, admin, dto.CreateUserRequest{Username: "me", Email: "me@example.com"})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "username")

	_, err = svc.CreateUser(ctx, regular, dto.CreateUserRequest{Username: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.GetUser(ctx, regular, "newbie")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := svc.UpdateUser(ctx, admin, "newbie", dto.UpdateUserRequest{Role: strPtr("moderator"), FirstName: strPtr("New")})
	require.NoError(t, err)
	assert.Equal(t, "moderator", updated.Role)
	assert.Equal(t, "New", updated.FirstName)

	page, err := svc.ListUsers(ctx, admin, commonDto.SearchFilter{Search: "NEW"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Count)

	require.NoError(t, svc.DeleteUser(ctx, admin, "newbie"))
	_, err = svc.GetUser(ctx, admin, "newbie")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSuperuserIsProtectedFromAdmins(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "admin", authz.RoleAdmin).Principal()

	email := "root@example.com"
	root := &entity.User{Username: "root", Email: &email, Role: authz.RoleAdmin, IsSuperuser: true}
	require.NoError(t, db.Create(root).Error)

	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, "root"), apperror.ErrForbidden)

	_, err := svc.UpdateUser(ctx, root.Principal(), "admin", dto.UpdateUserRequest{Role: strPtr("user")})
	require.NoError(t, err)
}

func TestDeleteUserRecomputesRatings(t *testing.T) {
	db, svc, rec := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "root", authz.RoleAdmin).Principal()
	alice := testutil.CreateUser(t, db, "alice", authz.RoleUser)
	bob := testutil.CreateUser(t, db, "bob", authz.RoleUser)
	title := testutil.CreateTitle(t, db, "Ran", 1985)

	for _, r := range []*entity.Review{
		{TitleID: title.ID, AuthorID: alice.ID, Text: "a", Score: 2},
		{TitleID: title.ID, AuthorID: bob.ID, Text: "b", Score: 8},
	} {
		require.NoError(t, db.Omit("Author", "Title").Create(r).Error)
	}
	require.NoError(t, db.Model(title).Update("rating", 5.0).Error)

	require.NoError(t, svc.DeleteUser(ctx, admin, "alice"))

	var reloaded entity.Title
	require.NoError(t, db.First(&reloaded, title.ID).Error)
	require.NotNil(t, reloaded.Rating)
	assert.InDelta(t, 8.0, *reloaded.Rating, 1e-9)

	require.Contains(t, rec, title.ID)
	assert.InDelta(t, 8.0, *rec[title.ID], 1e-9)
}

func TestDeleteUserRatingsMatchRemainingScores(t *testing.T) {
	db, svc, rec := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "root", authz.RoleAdmin).Principal()
	carol := testutil.CreateUser(t, db, "carol", authz.RoleUser)
	dave := testutil.CreateUser(t, db, "dave", authz.RoleUser)
	solo := testutil.CreateTitle(t, db, "Ikiru", 1952)
	shared := testutil.CreateTitle(t, db, "Kwaidan", 1964)

	for _, r := range []*entity.Review{
		{TitleID: solo.ID, AuthorID: carol.ID, Text: "a", Score: 9},
		{TitleID: shared.ID, AuthorID: carol.ID, Text: "b", Score: 1},
		{TitleID: shared.ID, AuthorID: dave.ID, Text: "c", Score: 6},
		{TitleID: shared.ID, AuthorID: admin.UserID, Text: "d", Score: 7},
	} {
		require.NoError(t, db.Omit("Author", "Title").Create(r).Error)
	}

	require.NoError(t, svc.DeleteUser(ctx, admin, "carol"))

	var got entity.Title
	require.NoError(t, db.First(&got, solo.ID).Error)
	assert.Nil(t, got.Rating, "no reviews left")
	require.Contains(t, rec, solo.ID)
	assert.Nil(t, rec[solo.ID])

	var other entity.Title
	require.NoError(t, db.First(&other, shared.ID).Error)
	require.NotNil(t, other.Rating)
	assert.InDelta(t, 6.5, *other.Rating, 1e-9)
	assert.InDelta(t, 6.5, *rec[shared.ID], 1e-9)

	var reviews int64
	require.NoError(t, db.Model(&entity.Review{}).Where("author_id = ?", carol.ID).Count(&reviews).Error)
	assert.Zero(t, reviews)
}
