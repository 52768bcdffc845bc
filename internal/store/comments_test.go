package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var commentCols = []string{
	"id", "body", "published_date", "author_id",
	"article_id", "created_at", "updated_at", "deleted_at",
}

func TestCommentStoreInsertManyReturnsCreatedRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	authorID := int64(2)
	articleID := int64(5)

	mock.ExpectQuery("INSERT INTO comments").
		WithArgs(
			[]string{"hi"},
			[]*time.Time{&now},
			[]*int64{&authorID},
			[]*int64{&articleID},
		).
		WillReturnRows(pgxmock.NewRows(commentCols).
			AddRow(int64(1), "hi", &now, &authorID, &articleID, now, now, nil))

	created, err := NewCommentStore(mock).InsertMany(context.Background(), []CommentCandidate{{
		Text:          "hi",
		PublishedDate: &now,
		AuthorID:      &authorID,
		ArticleID:     &articleID,
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "hi", created[0].Text)
	require.Equal(t, &articleID, created[0].ArticleID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreInsertManyDuplicateTripleIsSkipped(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO comments").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnRows(pgxmock.NewRows(commentCols))

	created, err := NewCommentStore(mock).InsertMany(context.Background(), []CommentCandidate{{
		Text: "hi",
	}})
	require.NoError(t, err)
	require.Empty(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreListForArticlesJoinsAuthors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	authorID := int64(2)
	articleID := int64(5)
	uname := "carol"
	cols := append(append([]string{}, commentCols...),
		"u_id", "u_username", "u_created_at", "u_updated_at", "u_deleted_at")

	mock.ExpectQuery("SELECT (.+) FROM comments").
		WithArgs([]int64{articleID}).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(1), "hi", &now, &authorID, &articleID, now, now, nil,
				&authorID, &uname, &now, &now, nil))

	comments, err := NewCommentStore(mock).ListForArticles(context.Background(), []int64{articleID})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.NotNil(t, comments[0].Author)
	require.Equal(t, "carol", comments[0].Author.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}
