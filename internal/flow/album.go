package flow

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/spotify/parser"
)

const (
	keyAlbumID  = "album_id"
	keyAlbumDoc = "album_doc"

	// albumLookbackDays bounds metadata refresh to recent releases.
	albumLookbackDays = 365 * 2
)

func (s *Service) registerAlbumTasks() error {
	tasks := []*Task{
		{
			Name: "fetch_album_playcount", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.AlbumPlaycount(ctx, args.String(keyAlbumID))
				if err != nil {
					return nil, err
				}
				return Payload{keyAlbumDoc: doc}, nil
			},
		},
		{
			Name: "update_album", Queue: jobqueue.QueueShort, TimeLimit: 2 * time.Second,
			Run:  s.updateAlbum,
		},
		{
			Name: "push_album_playcounts", Queue: jobqueue.QueueShort, TimeLimit: 5 * time.Second,
			Run:  s.pushAlbumPlaycounts,
		},
		{
			Name: "flow_update_albums", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowUpdateAlbums,
		},
		{
			Name: "flow_album_playcounts", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowAlbumPlaycounts,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// updateAlbum upserts one album from its client playcount view, which
// carries the cover, label and release date the API listing omits.
func (s *Service) updateAlbum(ctx context.Context, args Payload) (Payload, error) {
	album := parser.AlbumFromJSON(args.Object(keyAlbumDoc))
	if album == nil {
		s.logger.Debug("album update skipped, unparseable result",
			"album_id", args.String(keyAlbumID))
		return Payload{}, nil
	}
	if _, err := s.ds.UpdateAlbums([]datastore.Album{*album}); err != nil {
		return nil, err
	}
	return Payload{keyAlbumID: album.ID}, nil
}

// pushAlbumPlaycounts records today's playcount observation for every track
// of an album, inserting tracks the store has not seen.
func (s *Service) pushAlbumPlaycounts(ctx context.Context, args Payload) (Payload, error) {
	doc := args.Object(keyAlbumDoc)
	if doc == nil {
		return Payload{"playcounts": 0}, nil
	}

	uri, _ := doc.GetString("uri")
	albumID := parser.URIToID(uri)
	if albumID != "" {
		if discs, err := doc.GetObjectArray("discs"); err == nil {
			tracks := parser.TracksFromDiscs(discs, albumID)
			if _, err := s.ds.CreateTracks(tracks); err != nil {
				return nil, err
			}
		}
	}

	playcounts := parser.PlaycountsFromAlbum(doc)
	written, err := s.ds.CreateTrackPlaycounts(playcounts)
	if err != nil {
		return nil, err
	}
	return Payload{"playcounts": written}, nil
}

// flowUpdateAlbums refreshes metadata for recent albums by verified artists
// that are missing a cover or label.
func (s *Service) flowUpdateAlbums(ctx context.Context, args Payload) (Payload, error) {
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 100000)
	now := time.Now().UTC()

	albumIDs, err := s.ds.AlbumsMissingMetadata(now.AddDate(0, 0, -albumLookbackDays), now, skip, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("updating album metadata", "albums", len(albumIDs))

	for _, id := range albumIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "fetch_album_playcount", Args: Payload{keyAlbumID: id}},
			Call{Task: "update_album"},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("album update dispatch failed", "album_id", id, "error", err)
		}
	}
	return Payload{"dispatched": len(albumIDs)}, nil
}

// flowAlbumPlaycounts collects playcounts for recent albums with no
// observation yet.
func (s *Service) flowAlbumPlaycounts(ctx context.Context, args Payload) (Payload, error) {
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 100000)
	verifiedOnly := args.Bool("verified_artists", true)
	now := time.Now().UTC()

	albumIDs, err := s.ds.AlbumsMissingPlaycounts(now.AddDate(0, 0, -albumLookbackDays), now, verifiedOnly, skip, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("collecting album playcounts", "albums", len(albumIDs))

	for _, id := range albumIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "fetch_album_playcount", Args: Payload{keyAlbumID: id}},
			Call{Task: "push_album_playcounts"},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("playcount dispatch failed", "album_id", id, "error", err)
		}
	}
	return Payload{"dispatched": len(albumIDs)}, nil
}
