// internal/cleanup/coordinator.go
package cleanup

import (
	"context"
	"log/slog"

	"propshare-wallet/internal/repository"
)

// CollectionResult is the outcome of purging one owner-scoped collection.
type CollectionResult struct {
	Collection string `json:"collection"`
	Deleted    int64  `json:"deleted"`
	Err        error  `json:"-"`
}

// Report summarizes a ClearAllUserData run.
type Report struct {
	Results []CollectionResult `json:"results"`
}

// Failed returns the collections whose delete failed.
func (r Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Collection)
		}
	}
	return failed
}

// Coordinator performs the cascading delete of every collection scoped to an
// owner. The delete is a single logical operation but not transactional:
// each collection is purged independently and a failure in one never stops
// the rest.
type Coordinator struct {
	collections []repository.OwnerCollection
	critical    []repository.OwnerCollection
	logger      *slog.Logger
}

// New creates a Coordinator over a fixed, ordered list of collections.
// critical names the subset that VerifyCleanup re-checks afterwards.
func New(collections, critical []repository.OwnerCollection, logger *slog.Logger) *Coordinator {
	return &Coordinator{collections: collections, critical: critical, logger: logger}
}

// ClearAllUserData deletes every document in every owner-scoped collection,
// collection by collection. Failures are logged and reported, never
// propagated as an error: disconnect must complete regardless.
func (c *Coordinator) ClearAllUserData(ctx context.Context, ownerID string) Report {
	report := Report{Results: make([]CollectionResult, 0, len(c.collections))}
	for _, coll := range c.collections {
		deleted, err := coll.DeleteAllForOwner(ctx, ownerID)
		if err != nil {
			c.logger.Error("cleanup failed for collection, continuing",
				"collection", coll.Name(), "owner_id", ownerID, "error", err)
		} else {
			c.logger.Info("cleanup purged collection",
				"collection", coll.Name(), "owner_id", ownerID, "deleted", deleted)
		}
		report.Results = append(report.Results, CollectionResult{
			Collection: coll.Name(),
			Deleted:    deleted,
			Err:        err,
		})
	}
	return report
}

// VerifyCleanup re-reads the critical collections and returns remaining
// per-collection counts. A non-zero count is advisory: the caller decides
// whether to retry, it is not a failure of disconnect.
func (c *Coordinator) VerifyCleanup(ctx context.Context, ownerID string) (map[string]int64, error) {
	remaining := make(map[string]int64, len(c.critical))
	for _, coll := range c.critical {
		count, err := coll.CountForOwner(ctx, ownerID)
		if err != nil {
			c.logger.Warn("cleanup verification read failed",
				"collection", coll.Name(), "owner_id", ownerID, "error", err)
			return remaining, err
		}
		remaining[coll.Name()] = count
	}
	return remaining, nil
}
