package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/yikoni/docbase/internal/filestore"
	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
)

type CleanupDocumentStore interface {
	GetByIDAnyOwner(ctx context.Context, docID int64) (*model.Document, error)
	SoftDelete(ctx context.Context, userID string, docID int64, now int64) error
	HardDelete(ctx context.Context, docID int64) error
	ReassignOwner(ctx context.Context, docID int64, newOwner string, now int64) error
}

type CleanupChunkStore interface {
	DeleteByDocument(ctx context.Context, docID int64) error
}

type MembershipStore interface {
	DeleteItemsByDocument(ctx context.Context, docID int64) error
}

// CleanupService owns document deletion: database rows first, in dependency
// order, then the blob. Blob removal is best effort; a storage outage never
// blocks the delete.
type CleanupService struct {
	docs        CleanupDocumentStore
	chunks      CleanupChunkStore
	memberships MembershipStore
	stores      map[string]filestore.Store
}

func NewCleanupService(docs CleanupDocumentStore, chunks CleanupChunkStore, memberships MembershipStore, stores map[string]filestore.Store) *CleanupService {
	return &CleanupService{docs: docs, chunks: chunks, memberships: memberships, stores: stores}
}

func (s *CleanupService) DeleteDocument(ctx context.Context, userID string, docID int64) error {
	doc, err := s.resolveOwned(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.deleteRows(ctx, userID, doc); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		s.deleteBlobs(ctx, doc.StorageProvider, []string{doc.StorageKey})
	}
	return nil
}

type BatchDeleteResult struct {
	Deleted []int64 `json:"deleted"`
	Failed  []int64 `json:"failed,omitempty"`
}

// DeleteDocuments removes each document's rows individually, then groups the
// surviving storage keys by provider so each backend gets one batch call.
func (s *CleanupService) DeleteDocuments(ctx context.Context, userID string, docIDs []int64) (*BatchDeleteResult, error) {
	res := &BatchDeleteResult{}
	keysByProvider := make(map[string][]string)
	for _, docID := range docIDs {
		doc, err := s.resolveOwned(ctx, userID, docID)
		if err != nil {
			if appErr.IsNotFound(err) {
				// already gone, nothing to undo
				res.Deleted = append(res.Deleted, docID)
				continue
			}
			logutil.GetLogger(ctx).Warn("skip document in batch delete",
				zap.Int64("doc_id", docID), zap.Error(err))
			res.Failed = append(res.Failed, docID)
			continue
		}
		if err := s.deleteRows(ctx, userID, doc); err != nil {
			logutil.GetLogger(ctx).Error("delete document rows failed",
				zap.Int64("doc_id", docID), zap.Error(err))
			res.Failed = append(res.Failed, docID)
			continue
		}
		res.Deleted = append(res.Deleted, docID)
		if doc.StorageKey != "" {
			keysByProvider[doc.StorageProvider] = append(keysByProvider[doc.StorageProvider], doc.StorageKey)
		}
	}
	for provider, keys := range keysByProvider {
		s.deleteBlobs(ctx, provider, keys)
	}
	return res, nil
}

func (s *CleanupService) resolveOwned(ctx context.Context, userID string, docID int64) (*model.Document, error) {
	doc, err := s.docs.GetByIDAnyOwner(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		if doc.UserID != "" {
			return nil, appErr.ErrForbidden
		}
		// a record without an owner is healed onto the caller rather than
		// left permanently undeletable
		logutil.GetLogger(ctx).Warn("healing ownerless document",
			zap.Int64("doc_id", docID), zap.String("new_owner", userID))
		if err := s.docs.ReassignOwner(ctx, docID, userID, timeutil.NowUnix()); err != nil {
			return nil, err
		}
		doc.UserID = userID
	}
	return doc, nil
}

// deleteRows marks the document deleted before touching dependents, so an
// in-flight embed observes the tombstone and cannot finalize against it.
func (s *CleanupService) deleteRows(ctx context.Context, userID string, doc *model.Document) error {
	if doc.State == model.DocumentStateNormal {
		if err := s.docs.SoftDelete(ctx, userID, doc.ID, timeutil.NowUnix()); err != nil {
			return err
		}
	}
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.memberships.DeleteItemsByDocument(ctx, doc.ID); err != nil {
		return err
	}
	return s.docs.HardDelete(ctx, doc.ID)
}

func (s *CleanupService) deleteBlobs(ctx context.Context, provider string, keys []string) {
	logger := logutil.GetLogger(ctx).With(zap.String("provider", provider), zap.Int("keys", len(keys)))
	store, ok := s.stores[provider]
	if !ok {
		logger.Warn("no store registered for provider, leaving blobs behind")
		return
	}
	if err := store.DeleteBatch(ctx, keys); err != nil {
		logger.Warn("batch blob delete failed, retrying per key", zap.Error(err))
		for _, key := range keys {
			if err := store.Delete(ctx, key); err != nil {
				logger.Warn("blob delete failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
