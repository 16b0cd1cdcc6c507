package service

import (
	"context"
	"strings"

	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/repo"
)

type CollectionService struct {
	cols *repo.CollectionRepo
	docs *repo.DocumentRepo
}

func NewCollectionService(cols *repo.CollectionRepo, docs *repo.DocumentRepo) *CollectionService {
	return &CollectionService{cols: cols, docs: docs}
}

type CreateCollectionArgs struct {
	Name     string
	ParentID int64
	OrderIdx int
	Color    string
	Icon     string
}

func (s *CollectionService) Create(ctx context.Context, userID string, args CreateCollectionArgs) (*model.Collection, error) {
	if strings.TrimSpace(args.Name) == "" {
		return nil, appErr.ErrInvalid
	}
	if args.ParentID != 0 {
		// the parent must exist and belong to the caller
		if _, err := s.cols.GetByID(ctx, userID, args.ParentID); err != nil {
			return nil, err
		}
	}
	now := timeutil.NowUnix()
	col := &model.Collection{
		UserID:   userID,
		Name:     args.Name,
		ParentID: args.ParentID,
		OrderIdx: args.OrderIdx,
		Color:    args.Color,
		Icon:     args.Icon,
		State:    model.CollectionStateNormal,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.cols.Create(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

func (s *CollectionService) Rename(ctx context.Context, userID string, colID int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return appErr.ErrInvalid
	}
	return s.cols.Rename(ctx, userID, colID, name, timeutil.NowUnix())
}

// Delete removes the collection and its memberships. Documents themselves are
// untouched; only the grouping disappears.
func (s *CollectionService) Delete(ctx context.Context, userID string, colID int64) error {
	return s.cols.SoftDelete(ctx, userID, colID, timeutil.NowUnix())
}

func (s *CollectionService) ListRoots(ctx context.Context, userID string) ([]model.Collection, error) {
	return s.cols.ListRoots(ctx, userID)
}

func (s *CollectionService) ListChildren(ctx context.Context, userID string, parentID int64) ([]model.Collection, error) {
	if _, err := s.cols.GetByID(ctx, userID, parentID); err != nil {
		return nil, err
	}
	return s.cols.ListChildren(ctx, userID, parentID)
}

// AddDocument links a document into a collection. Adding the same document
// twice is a no-op.
func (s *CollectionService) AddDocument(ctx context.Context, userID string, colID, docID int64) error {
	if _, err := s.cols.GetByID(ctx, userID, colID); err != nil {
		return err
	}
	if _, err := s.docs.GetByID(ctx, userID, docID); err != nil {
		return err
	}
	return s.cols.AddItem(ctx, &model.CollectionItem{
		CollectionID: colID,
		DocumentID:   docID,
		UserID:       userID,
		Ctime:        timeutil.NowUnix(),
	})
}

func (s *CollectionService) RemoveDocument(ctx context.Context, userID string, colID, docID int64) error {
	return s.cols.RemoveItem(ctx, userID, colID, docID)
}
