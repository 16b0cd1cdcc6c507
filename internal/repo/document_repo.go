package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/yikoni/docbase/internal/model"
	"github.com/yikoni/docbase/internal/pkg/dbutil"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
)

var documentFields = []string{
	"id", "user_id", "title", "content", "category", "file_type",
	"storage_key", "storage_provider", "embedded", "embedding_status",
	"embedding_progress", "embedding_model", "chunks_count",
	"last_embedded_at", "state", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func scanDocument(scan func(dest ...interface{}) error) (*model.Document, error) {
	var doc model.Document
	err := scan(
		&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &doc.Category, &doc.FileType,
		&doc.StorageKey, &doc.StorageProvider, &doc.Embedded, &doc.EmbeddingStatus,
		&doc.EmbeddingProg, &doc.EmbeddingModel, &doc.ChunksCount,
		&doc.LastEmbeddedAt, &doc.State, &doc.Ctime, &doc.Mtime,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO documents (
			user_id, title, content, category, file_type,
			storage_key, storage_provider, embedded, embedding_status,
			embedding_progress, embedding_model, chunks_count,
			last_embedded_at, state, ctime, mtime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		doc.UserID, doc.Title, doc.Content, doc.Category, doc.FileType,
		doc.StorageKey, doc.StorageProvider, doc.Embedded, doc.EmbeddingStatus,
		doc.EmbeddingProg, doc.EmbeddingModel, doc.ChunksCount,
		doc.LastEmbeddedAt, doc.State, doc.Ctime, doc.Mtime,
	).Scan(&doc.ID)
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID string, docID int64) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   model.DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return doc, err
}

// GetByIDAnyOwner skips the ownership filter. Used only by the cleanup
// coordinator to detect orphaned-ownership rows.
func (r *DocumentRepo) GetByIDAnyOwner(ctx context.Context, docID int64) (*model.Document, error) {
	where := map[string]interface{}{
		"id":    docID,
		"state": model.DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return doc, err
}

type DocumentPatch struct {
	Title    *string
	Content  *string
	Category *model.Category
	FileType *string
}

// ContentChanged reports whether the patch touches fields that invalidate
// previously computed embeddings.
func (p DocumentPatch) ContentChanged() bool {
	return p.Title != nil || p.Content != nil
}

// UpdateContent applies the patch. When the title or content changes the
// embedding lifecycle is reset and all chunk rows are dropped in the same
// transaction, so no stale vectors survive a content edit.
func (r *DocumentRepo) UpdateContent(ctx context.Context, userID string, docID int64, patch DocumentPatch, now int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	update := map[string]interface{}{
		"mtime": now,
	}
	if patch.Title != nil {
		update["title"] = *patch.Title
	}
	if patch.Content != nil {
		update["content"] = *patch.Content
	}
	if patch.Category != nil {
		update["category"] = string(*patch.Category)
	}
	if patch.FileType != nil {
		update["file_type"] = *patch.FileType
	}
	if patch.ContentChanged() {
		update["embedded"] = false
		update["embedding_status"] = string(model.EmbeddingStatusPending)
		update["embedding_progress"] = 0
		update["embedding_model"] = ""
		update["chunks_count"] = 0
		update["last_embedded_at"] = 0
	}
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   model.DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	if patch.ContentChanged() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type ListDocumentsQuery struct {
	CollectionID int64
	Category     model.Category
	Search       string
	Page         int
	PageSize     int
}

func (r *DocumentRepo) List(ctx context.Context, userID string, q ListDocumentsQuery) ([]model.Document, int, error) {
	cond := `d.user_id = ? AND d.state = ?`
	args := []interface{}{userID, model.DocumentStateNormal}
	if q.Category != "" {
		cond += ` AND d.category = ?`
		args = append(args, string(q.Category))
	}
	if q.Search != "" {
		cond += ` AND (d.title ILIKE ? OR d.content ILIKE ?)`
		like := "%" + q.Search + "%"
		args = append(args, like, like)
	}
	join := ""
	if q.CollectionID > 0 {
		join = ` JOIN collection_items ci ON ci.document_id = d.id`
		cond += ` AND ci.collection_id = ?`
		args = append(args, q.CollectionID)
	}

	countQuery := sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(1) FROM documents d`+join+` WHERE `+cond)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size <= 0 {
		size = 50
	}
	listQuery := `SELECT d.id, d.user_id, d.title, d.content, d.category, d.file_type,
		d.storage_key, d.storage_provider, d.embedded, d.embedding_status,
		d.embedding_progress, d.embedding_model, d.chunks_count,
		d.last_embedded_at, d.state, d.ctime, d.mtime
		FROM documents d` + join + ` WHERE ` + cond + ` ORDER BY d.mtime DESC LIMIT ? OFFSET ?`
	listArgs := append(args, size, (page-1)*size)
	listQuery = sqlx.Rebind(sqlx.DOLLAR, listQuery)
	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	return docs, total, rows.Err()
}

// ClaimEmbedding is the atomic claim of the embedding state machine: a single
// conditional update from one of the given statuses to processing. Returns
// false without error when another attempt holds the claim.
func (r *DocumentRepo) ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error) {
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	query := `
		UPDATE documents
		SET embedding_status = ?, embedding_progress = 0, mtime = ?
		WHERE id = ? AND user_id = ? AND state = ? AND embedding_status IN (?)
	`
	query, args, err := sqlx.In(query,
		string(model.EmbeddingStatusProcessing), now,
		docID, userID, model.DocumentStateNormal, statuses,
	)
	if err != nil {
		return false, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *DocumentRepo) UpdateEmbeddingProgress(ctx context.Context, docID int64, progress int, now int64) error {
	const query = `
		UPDATE documents SET embedding_progress = $1, mtime = $2
		WHERE id = $3 AND state = $4 AND embedding_status = $5
	`
	_, err := r.db.ExecContext(ctx, query, progress, now, docID,
		model.DocumentStateNormal, string(model.EmbeddingStatusProcessing))
	return err
}

// FinalizeEmbedding records a successful pass. The update is absolute, so a
// duplicate completion notification is a harmless no-op. Deleted documents
// are skipped: a worker must not resurrect embedding fields on a row the
// user removed mid-flight.
func (r *DocumentRepo) FinalizeEmbedding(ctx context.Context, userID string, docID int64, chunksCount int, modelName string, now int64) (bool, error) {
	const query = `
		UPDATE documents
		SET embedded = TRUE, embedding_status = $1, embedding_progress = 100,
			embedding_model = $2, chunks_count = $3, last_embedded_at = $4, mtime = $5
		WHERE id = $6 AND user_id = $7 AND state = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		string(model.EmbeddingStatusCompleted), modelName, chunksCount, now, now,
		docID, userID, model.DocumentStateNormal)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FailEmbedding flips a processing document to failed. The embedded flag is
// left untouched so a failed re-embed keeps the last-known-good state.
func (r *DocumentRepo) FailEmbedding(ctx context.Context, docID int64, now int64) error {
	const query = `
		UPDATE documents SET embedding_status = $1, mtime = $2
		WHERE id = $3 AND state = $4 AND embedding_status = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		string(model.EmbeddingStatusFailed), now, docID,
		model.DocumentStateNormal, string(model.EmbeddingStatusProcessing))
	return err
}

func (r *DocumentRepo) SoftDelete(ctx context.Context, userID string, docID int64, now int64) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   model.DocumentStateNormal,
	}
	update := map[string]interface{}{
		"state": model.DocumentStateDeleted,
		"mtime": now,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) HardDelete(ctx context.Context, docID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	return err
}

func (r *DocumentRepo) ReassignOwner(ctx context.Context, docID int64, newOwner string, now int64) error {
	const query = `UPDATE documents SET user_id = $1, mtime = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, newOwner, now, docID)
	return err
}

// ListPendingEmbedding returns pending documents that have sat untouched
// longer than maxMtime, for the resync job to re-enqueue.
func (r *DocumentRepo) ListPendingEmbedding(ctx context.Context, maxMtime int64, limit int) ([]model.Document, error) {
	const query = `
		SELECT id, user_id, title, content, category, file_type,
			storage_key, storage_provider, embedded, embedding_status,
			embedding_progress, embedding_model, chunks_count,
			last_embedded_at, state, ctime, mtime
		FROM documents
		WHERE state = $1 AND embedding_status = $2 AND mtime < $3
		ORDER BY mtime ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query,
		model.DocumentStateNormal, string(model.EmbeddingStatusPending), maxMtime, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ReclaimStuckProcessing resets documents stuck in processing since before
// the deadline back to pending and returns them, so a crashed worker's jobs
// can be resubmitted.
func (r *DocumentRepo) ReclaimStuckProcessing(ctx context.Context, deadline int64, now int64, limit int) ([]model.Document, error) {
	const query = `
		UPDATE documents
		SET embedding_status = $1, mtime = $2
		WHERE id IN (
			SELECT id FROM documents
			WHERE state = $3 AND embedding_status = $4 AND mtime < $5
			ORDER BY mtime ASC
			LIMIT $6
		)
		RETURNING id, user_id, title, content, category, file_type,
			storage_key, storage_provider, embedded, embedding_status,
			embedding_progress, embedding_model, chunks_count,
			last_embedded_at, state, ctime, mtime
	`
	rows, err := r.db.QueryContext(ctx, query,
		string(model.EmbeddingStatusPending), now,
		model.DocumentStateNormal, string(model.EmbeddingStatusProcessing), deadline, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}
