package genre_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/genre/dto"
	"anoa.com/yamdb/internal/modules/genre/repository"
	genre "anoa.com/yamdb/internal/modules/genre/service"
	"anoa.com/yamdb/internal/testutil"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
)

func TestGenreService(t *testing.T) {
	db := testutil.NewDB(t)
	svc := genre.NewGenreService(repository.NewGenreRepository(db), authz.MustNewEngine())
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "root", authz.RoleAdmin).Principal()
	mod := testutil.CreateUser(t, db, "mod", authz.RoleModerator).Principal()

	t.Run("create", func(t *testing.T) {
		res, err := svc.CreateGenre(ctx, admin, dto.CreateGenreRequest{Name: "Science Fiction"})
		require.NoError(t, err)
		assert.Equal(t, "science-fiction", res.Slug)

		_, err = svc.CreateGenre(ctx, admin, dto.CreateGenreRequest{Name: "Drama", Slug: "drama"})
		require.NoError(t, err)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := svc.CreateGenre(ctx, admin, dto.CreateGenreRequest{Name: "Sci-Fi", Slug: "science-fiction"})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("moderator cannot manage catalog", func(t *testing.T) {
		_, err := svc.CreateGenre(ctx, mod, dto.CreateGenreRequest{Name: "Horror"})
		assert.ErrorIs(t, err, apperror.ErrForbidden)

		err = svc.DeleteGenre(ctx, mod, "drama")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("list paginates", func(t *testing.T) {
		page, err := svc.GetAllGenres(ctx, commonDto.SearchFilter{PaginationQuery: commonDto.PaginationQuery{Limit: 1, Offset: 1}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Count)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "science-fiction", page.Results[0].Slug)
	})

	t.Run("delete unlinks titles", func(t *testing.T) {
		var drama entity.Genre
		require.NoError(t, db.Where("slug = ?", "drama").First(&drama).Error)
		title := testutil.CreateTitle(t, db, "Ikiru", 1952)
		require.NoError(t, db.Model(title).Association("Genres").Append(&drama))

		require.NoError(t, svc.DeleteGenre(ctx, admin, "drama"))

		var links int64
		require.NoError(t, db.Table(entity.TitleGenresTable).Where("title_id = ?", title.ID).Count(&links).Error)
		assert.Zero(t, links)

		var count int64
		require.NoError(t, db.Model(&entity.Title{}).Where("id = ?", title.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}
