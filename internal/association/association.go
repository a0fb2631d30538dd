// Package association resolves entity-to-entity edges (album artists, track
// artists, playlist memberships, genre tags) idempotently: for a batch of
// desired edges it fetches what already exists, computes the delta and bulk
// inserts only the missing rows. Duplicate-key races with concurrent workers
// are benign because the insert path ignores conflicts.
package association

import (
	"log/slog"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// EdgeStore is the slice of the datastore the resolver needs.
type EdgeStore interface {
	ExistingEdges(kind datastore.EdgeKind, primaryIDs []string) ([]datastore.EdgePair, error)
	InsertEdges(kind datastore.EdgeKind, pairs []datastore.EdgePair) (int, error)
	EnsureGenres(ids []string) (int, error)
}

// Resolver pushes edge deltas into an EdgeStore.
type Resolver struct {
	store  EdgeStore
	logger *slog.Logger
}

// NewResolver builds a resolver over the given store.
func NewResolver(store EdgeStore) *Resolver {
	return &Resolver{
		store:  store,
		logger: logging.ForService("association"),
	}
}

// Resolve inserts the desired edges that do not already exist and returns
// how many rows were written. Genre edges create their genre rows first so
// foreign keys hold.
func (r *Resolver) Resolve(kind datastore.EdgeKind, desired []datastore.EdgePair) (int, error) {
	if len(desired) == 0 {
		return 0, nil
	}

	if kind == datastore.EdgeGenreArtist {
		genreIDs := make([]string, 0, len(desired))
		for _, pair := range desired {
			genreIDs = append(genreIDs, pair.RelatedID)
		}
		if _, err := r.store.EnsureGenres(genreIDs); err != nil {
			return 0, errors.New(err).
				Component("association").
				Category(errors.CategoryDatabase).
				Build()
		}
	}

	primarySet := make(map[string]struct{}, len(desired))
	primaryIDs := make([]string, 0, len(desired))
	for _, pair := range desired {
		if _, seen := primarySet[pair.PrimaryID]; !seen {
			primarySet[pair.PrimaryID] = struct{}{}
			primaryIDs = append(primaryIDs, pair.PrimaryID)
		}
	}

	existing, err := r.store.ExistingEdges(kind, primaryIDs)
	if err != nil {
		return 0, errors.New(err).
			Component("association").
			Category(errors.CategoryDatabase).
			Build()
	}
	existingSet := make(map[datastore.EdgePair]struct{}, len(existing))
	for _, pair := range existing {
		existingSet[pair] = struct{}{}
	}

	var delta []datastore.EdgePair
	seen := make(map[datastore.EdgePair]struct{}, len(desired))
	for _, pair := range desired {
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		if _, exists := existingSet[pair]; !exists {
			delta = append(delta, pair)
		}
	}
	if len(delta) == 0 {
		return 0, nil
	}

	inserted, err := r.store.InsertEdges(kind, delta)
	if err != nil {
		return 0, errors.New(err).
			Component("association").
			Category(errors.CategoryDatabase).
			Context("edge_kind", string(kind)).
			Build()
	}
	r.logger.Debug("edges resolved",
		"edge_kind", string(kind), "desired", len(desired), "inserted", inserted)
	return inserted, nil
}

// Pairs expands one primary identifier against many related identifiers.
func Pairs(primaryID string, relatedIDs []string) []datastore.EdgePair {
	pairs := make([]datastore.EdgePair, 0, len(relatedIDs))
	for _, related := range relatedIDs {
		if related == "" {
			continue
		}
		pairs = append(pairs, datastore.EdgePair{PrimaryID: primaryID, RelatedID: related})
	}
	return pairs
}
