package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/yikoni/docbase/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForDocument swaps the document's chunk set in one transaction:
// the old rows are deleted and the new ones inserted before commit, so a
// reader never observes vectors from two different models for one document.
func (r *ChunkRepo) ReplaceForDocument(ctx context.Context, docID int64, userID string, chunks []*model.DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO document_chunks (document_id, user_id, position, content, token_count, embedding, model, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			docID, userID, chunk.Position, chunk.Content, chunk.TokenCount,
			pgvector.NewVector(chunk.Embedding), chunk.Model, chunk.Ctime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID)
	return err
}

// CountByDocuments returns chunk counts for a page of documents in a single
// query. Callers must never loop a per-document count instead.
func (r *ChunkRepo) CountByDocuments(ctx context.Context, userID string, docIDs []int64) (map[int64]int, error) {
	if len(docIDs) == 0 {
		return map[int64]int{}, nil
	}
	query := `SELECT document_id, COUNT(1) FROM document_chunks WHERE user_id = ? AND document_id IN (?) GROUP BY document_id`
	query, args, err := sqlx.In(query, userID, docIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]int, len(docIDs))
	for rows.Next() {
		var docID int64
		var count int
		if err := rows.Scan(&docID, &count); err != nil {
			return nil, err
		}
		result[docID] = count
	}
	return result, rows.Err()
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, userID string, docID int64) ([]model.DocumentChunk, error) {
	const query = `
		SELECT id, document_id, user_id, position, content, token_count, embedding, model, ctime
		FROM document_chunks
		WHERE user_id = $1 AND document_id = $2
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.DocumentChunk, 0)
	for rows.Next() {
		var chunk model.DocumentChunk
		var vec pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.Position,
			&chunk.Content, &chunk.TokenCount, &vec, &chunk.Model, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunk.Embedding = vec.Slice()
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
