package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/yikoni/docbase/internal/model"
	"github.com/yikoni/docbase/internal/pkg/dbutil"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
)

var collectionFields = []string{
	"id", "user_id", "name", "parent_id", "order_idx", "color", "icon", "state", "ctime", "mtime",
}

type CollectionRepo struct {
	db *sql.DB
}

func NewCollectionRepo(db *sql.DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

func scanCollection(scan func(dest ...interface{}) error) (*model.Collection, error) {
	var col model.Collection
	err := scan(&col.ID, &col.UserID, &col.Name, &col.ParentID, &col.OrderIdx,
		&col.Color, &col.Icon, &col.State, &col.Ctime, &col.Mtime)
	if err != nil {
		return nil, err
	}
	return &col, nil
}

func (r *CollectionRepo) Create(ctx context.Context, col *model.Collection) error {
	const query = `
		INSERT INTO collections (user_id, name, parent_id, order_idx, color, icon, state, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		col.UserID, col.Name, col.ParentID, col.OrderIdx, col.Color, col.Icon,
		col.State, col.Ctime, col.Mtime,
	).Scan(&col.ID)
	if dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *CollectionRepo) GetByID(ctx context.Context, userID string, colID int64) (*model.Collection, error) {
	where := map[string]interface{}{
		"id":      colID,
		"user_id": userID,
		"state":   model.CollectionStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("collections", where, collectionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	col, err := scanCollection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return col, err
}

func (r *CollectionRepo) Rename(ctx context.Context, userID string, colID int64, name string, now int64) error {
	where := map[string]interface{}{
		"id":      colID,
		"user_id": userID,
		"state":   model.CollectionStateNormal,
	}
	update := map[string]interface{}{
		"name":  name,
		"mtime": now,
	}
	sqlStr, args, err := builder.BuildUpdate("collections", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
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

// SoftDelete marks the collection deleted and clears its membership rows in
// one transaction. Documents themselves are never touched.
func (r *CollectionRepo) SoftDelete(ctx context.Context, userID string, colID int64, now int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const mark = `
		UPDATE collections SET state = $1, mtime = $2
		WHERE id = $3 AND user_id = $4 AND state = $5
	`
	result, err := tx.ExecContext(ctx, mark,
		model.CollectionStateDeleted, now, colID, userID, model.CollectionStateNormal)
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_items WHERE collection_id = $1`, colID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CollectionRepo) ListRoots(ctx context.Context, userID string) ([]model.Collection, error) {
	return r.listByParent(ctx, userID, 0)
}

func (r *CollectionRepo) ListChildren(ctx context.Context, userID string, parentID int64) ([]model.Collection, error) {
	return r.listByParent(ctx, userID, parentID)
}

func (r *CollectionRepo) listByParent(ctx context.Context, userID string, parentID int64) ([]model.Collection, error) {
	where := map[string]interface{}{
		"user_id":   userID,
		"parent_id": parentID,
		"state":     model.CollectionStateNormal,
		"_orderby":  "order_idx asc, ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("collections", where, collectionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make([]model.Collection, 0)
	for rows.Next() {
		col, err := scanCollection(rows.Scan)
		if err != nil {
			return nil, err
		}
		cols = append(cols, *col)
	}
	return cols, rows.Err()
}

// AddItem is idempotent: re-adding an existing membership is a no-op.
func (r *CollectionRepo) AddItem(ctx context.Context, item *model.CollectionItem) error {
	const query = `
		INSERT INTO collection_items (collection_id, document_id, user_id, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection_id, document_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, item.CollectionID, item.DocumentID, item.UserID, item.Ctime)
	return err
}

func (r *CollectionRepo) RemoveItem(ctx context.Context, userID string, colID, docID int64) error {
	const query = `
		DELETE FROM collection_items
		WHERE collection_id = $1 AND document_id = $2 AND user_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, colID, docID, userID)
	return err
}

func (r *CollectionRepo) DeleteItemsByDocument(ctx context.Context, docID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM collection_items WHERE document_id = $1`, docID)
	return err
}
