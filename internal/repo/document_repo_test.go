package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/repo"
)

func newDoc(userID, title string) *model.Document {
	now := timeutil.NowUnix()
	return &model.Document{
		UserID:          userID,
		Title:           title,
		Content:         "content of " + title,
		Category:        model.CategoryNote,
		EmbeddingStatus: model.EmbeddingStatusPending,
		State:           model.DocumentStateNormal,
		Ctime:           now,
		Mtime:           now,
	}
}

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "first")
	require.NoError(t, docs.Create(ctx, doc))
	require.NotZero(t, doc.ID)

	fetched, err := docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "first", fetched.Title)
	require.Equal(t, model.EmbeddingStatusPending, fetched.EmbeddingStatus)

	// other users cannot see the row
	_, err = docs.GetByID(ctx, "user-2", doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, docs.SoftDelete(ctx, "user-1", doc.ID, timeutil.NowUnix()))
	_, err = docs.GetByID(ctx, "user-1", doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// soft delete is not repeatable on the same row
	require.ErrorIs(t, docs.SoftDelete(ctx, "user-1", doc.ID, timeutil.NowUnix()), appErr.ErrNotFound)
}

func TestDocumentRepoContentUpdateResetsEmbedding(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	chunks := repo.NewChunkRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "embed me")
	require.NoError(t, docs.Create(ctx, doc))

	claimed, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	require.True(t, claimed)

	embedding := make([]float32, 768)
	embedding[0] = 0.5
	require.NoError(t, chunks.ReplaceForDocument(ctx, doc.ID, "user-1", []*model.DocumentChunk{{
		DocumentID: doc.ID, UserID: "user-1", Position: 0,
		Content: "chunk text", TokenCount: 2,
		Embedding: embedding, Model: "embed-001", Ctime: timeutil.NowUnix(),
	}}))
	finalized, err := docs.FinalizeEmbedding(ctx, "user-1", doc.ID, 1, "embed-001", timeutil.NowUnix())
	require.NoError(t, err)
	require.True(t, finalized)

	fetched, err := docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.True(t, fetched.Embedded)
	require.Equal(t, model.EmbeddingStatusCompleted, fetched.EmbeddingStatus)
	require.Equal(t, 1, fetched.ChunksCount)

	// editing the content invalidates the computed state and drops chunks
	newContent := "fully rewritten body"
	require.NoError(t, docs.UpdateContent(ctx, "user-1", doc.ID, repo.DocumentPatch{Content: &newContent}, timeutil.NowUnix()))

	fetched, err = docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.False(t, fetched.Embedded)
	require.Equal(t, model.EmbeddingStatusPending, fetched.EmbeddingStatus)
	require.Equal(t, 0, fetched.ChunksCount)
	require.Equal(t, "", fetched.EmbeddingModel)

	stored, err := chunks.ListByDocument(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestDocumentRepoMetadataUpdateKeepsEmbedding(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "stable")
	require.NoError(t, docs.Create(ctx, doc))
	_, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	_, err = docs.FinalizeEmbedding(ctx, "user-1", doc.ID, 3, "embed-001", timeutil.NowUnix())
	require.NoError(t, err)

	category := model.CategoryReference
	require.NoError(t, docs.UpdateContent(ctx, "user-1", doc.ID, repo.DocumentPatch{Category: &category}, timeutil.NowUnix()))

	fetched, err := docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.CategoryReference, fetched.Category)
	require.True(t, fetched.Embedded)
	require.Equal(t, model.EmbeddingStatusCompleted, fetched.EmbeddingStatus)
	require.Equal(t, 3, fetched.ChunksCount)
}

func TestDocumentRepoClaimIsSingleWinner(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "contested")
	require.NoError(t, docs.Create(ctx, doc))

	claimed, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	require.True(t, claimed)

	// second claim from {pending,failed} loses: the row is now processing
	claimed, err = docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	require.False(t, claimed)

	// force does not pre-empt an in-flight claim
	claimed, err = docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(true), timeutil.NowUnix())
	require.NoError(t, err)
	require.False(t, claimed)

	// once completed, only force may claim again
	_, err = docs.FinalizeEmbedding(ctx, "user-1", doc.ID, 1, "embed-001", timeutil.NowUnix())
	require.NoError(t, err)
	claimed, err = docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	require.False(t, claimed)
	claimed, err = docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(true), timeutil.NowUnix())
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestDocumentRepoFailEmbeddingKeepsEmbeddedFlag(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "flaky")
	require.NoError(t, docs.Create(ctx, doc))
	_, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)
	_, err = docs.FinalizeEmbedding(ctx, "user-1", doc.ID, 2, "embed-001", timeutil.NowUnix())
	require.NoError(t, err)

	// re-embed starts and fails
	claimed, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(true), timeutil.NowUnix())
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, docs.FailEmbedding(ctx, doc.ID, timeutil.NowUnix()))

	fetched, err := docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbeddingStatusFailed, fetched.EmbeddingStatus)
	// last-known-good result stays visible
	require.True(t, fetched.Embedded)
	require.Equal(t, 2, fetched.ChunksCount)
}

func TestDocumentRepoNoResurrectionAfterDelete(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "doomed")
	require.NoError(t, docs.Create(ctx, doc))
	_, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)

	require.NoError(t, docs.SoftDelete(ctx, "user-1", doc.ID, timeutil.NowUnix()))

	// a worker finishing after the delete must not touch the tombstone
	finalized, err := docs.FinalizeEmbedding(ctx, "user-1", doc.ID, 5, "embed-001", timeutil.NowUnix())
	require.NoError(t, err)
	require.False(t, finalized)
}

func TestDocumentRepoListFilters(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	cols := repo.NewCollectionRepo(conn)
	ctx := context.Background()

	note := newDoc("user-1", "meeting notes")
	require.NoError(t, docs.Create(ctx, note))
	article := newDoc("user-1", "deep dive article")
	article.Category = model.CategoryArticle
	require.NoError(t, docs.Create(ctx, article))
	other := newDoc("user-2", "not mine")
	require.NoError(t, docs.Create(ctx, other))

	col := &model.Collection{UserID: "user-1", Name: "work", State: model.CollectionStateNormal, Ctime: timeutil.NowUnix(), Mtime: timeutil.NowUnix()}
	require.NoError(t, cols.Create(ctx, col))
	require.NoError(t, cols.AddItem(ctx, &model.CollectionItem{CollectionID: col.ID, DocumentID: note.ID, UserID: "user-1", Ctime: timeutil.NowUnix()}))

	all, total, err := docs.List(ctx, "user-1", repo.ListDocumentsQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, all, 2)

	articles, total, err := docs.List(ctx, "user-1", repo.ListDocumentsQuery{Category: model.CategoryArticle})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, article.ID, articles[0].ID)

	found, total, err := docs.List(ctx, "user-1", repo.ListDocumentsQuery{Search: "MEETING"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, note.ID, found[0].ID)

	inCol, total, err := docs.List(ctx, "user-1", repo.ListDocumentsQuery{CollectionID: col.ID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, note.ID, inCol[0].ID)

	paged, total, err := docs.List(ctx, "user-1", repo.ListDocumentsQuery{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, paged, 1)
}

func TestDocumentRepoReclaimStuckProcessing(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "stuck")
	require.NoError(t, docs.Create(ctx, doc))
	_, err := docs.ClaimEmbedding(ctx, "user-1", doc.ID, model.ClaimableStatuses(false), timeutil.NowUnix())
	require.NoError(t, err)

	// deadline in the future: the processing row qualifies as stuck
	reclaimed, err := docs.ReclaimStuckProcessing(ctx, timeutil.NowUnix()+10, timeutil.NowUnix(), 100)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	require.Equal(t, doc.ID, reclaimed[0].ID)

	fetched, err := docs.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbeddingStatusPending, fetched.EmbeddingStatus)
}

func TestDocumentRepoListPendingEmbedding(t *testing.T) {
	conn := openTestDB(t)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()

	doc := newDoc("user-1", "forgotten")
	require.NoError(t, docs.Create(ctx, doc))

	pending, err := docs.ListPendingEmbedding(ctx, timeutil.NowUnix()+10, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, doc.ID, pending[0].ID)

	// nothing qualifies with a cutoff in the past
	pending, err = docs.ListPendingEmbedding(ctx, doc.Mtime-100, 100)
	require.NoError(t, err)
	require.Empty(t, pending)
}
