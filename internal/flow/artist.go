package flow

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/association"
	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/spotify/parser"
)

// Payload keys shared by the artist tasks.
const (
	keyArtistID    = "artist_id"
	keyInfo        = "info"
	keyInsights    = "insights"
	keyAbout       = "about"
	keyArtist      = "artist"
	keyGenres      = "genres"
	keyLinks       = "links"
	keyRelated     = "related"
	keyReleases    = "releases"
	keyCheckDB     = "check_db_first"
	keyPushRelated = "push_related_artists"
	keyPushDisco   = "push_discography"
)

func (s *Service) registerArtistTasks() error {
	tasks := []*Task{
		{
			Name: "fetch_artist_info", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.ArtistInfo(ctx, args.String(keyArtistID))
				if err != nil {
					return nil, err
				}
				return Payload{keyInfo: doc}, nil
			},
		},
		{
			Name: "fetch_artist_insights", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.ArtistInsights(ctx, args.String(keyArtistID))
				if err != nil {
					return nil, err
				}
				return Payload{keyInsights: doc}, nil
			},
		},
		{
			Name: "fetch_artist_about", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.ArtistAbout(ctx, args.String(keyArtistID))
				if err != nil {
					return nil, err
				}
				return Payload{keyAbout: doc}, nil
			},
		},
		{
			Name: "parse_artist", Queue: jobqueue.QueueShort, TimeLimit: 2 * time.Second,
			Run:  s.parseArtist,
		},
		{
			Name: "push_artist", Queue: jobqueue.QueueShort, TimeLimit: 5 * time.Second,
			Run:  s.pushArtist,
		},
		{
			Name: "push_artist_discography", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run:  s.pushArtistDiscography,
		},
		{
			Name: "flow_artist", Queue: jobqueue.QueueDefault, TimeLimit: 6 * time.Second,
			Run:  s.flowArtist,
		},
		{
			Name: "flow_update_artists", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowUpdateArtists,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// parseArtist canonicalizes the merged fetch results into one artist bundle.
// The public endpoint supplies name and genres, the client info view
// verified/active/related/releases, the insights view social links.
func (s *Service) parseArtist(ctx context.Context, args Payload) (Payload, error) {
	artistID := args.String(keyArtistID)
	if artistID == "" {
		return nil, errors.Newf("parse_artist requires an artist id").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}

	artist := &datastore.Artist{ID: artistID}
	out := Payload{keyArtist: artist}

	if about := args.Object(keyAbout); about != nil {
		if parsed := parser.ArtistFromJSON(about); parsed != nil {
			artist.Name = parsed.Name
		}
		genres := parser.GenresFromAbout(about)
		genreIDs := make([]string, 0, len(genres))
		for _, g := range genres {
			genreIDs = append(genreIDs, g.ID)
		}
		out[keyGenres] = genreIDs
	}

	if info := args.Object(keyInfo); info != nil {
		if parsed := parser.ArtistFromInfo(info); parsed != nil {
			if parsed.Name != "" {
				artist.Name = parsed.Name
			}
			artist.Verified = parsed.Verified
			artist.Active = parsed.Active
		}
		out[keyRelated] = parser.RelatedArtists(info)
		if releases, err := info.GetObject(keyReleases); err == nil {
			out[keyReleases] = releases
		}
	}

	if insights := args.Object(keyInsights); insights != nil {
		out[keyLinks] = parser.ArtistLinksFromInfo(insights, artistID)
	}

	return out, nil
}

// pushArtist persists the parsed bundle: the artist row itself, genre and
// link associations the artist does not have yet, then the optional
// recursive steps. Related artists found missing are crawled with further
// propagation disabled so one seed cannot fan out across the whole catalog.
func (s *Service) pushArtist(ctx context.Context, args Payload) (Payload, error) {
	artist, _ := args[keyArtist].(*datastore.Artist)
	if artist == nil || artist.ID == "" {
		return nil, errors.Newf("push_artist requires a parsed artist").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}

	existing, err := s.ds.GetArtist(artist.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := s.ds.CreateArtist(artist); err != nil {
			return nil, err
		}
	} else if err := s.ds.UpdateArtistStatus(existing, artist); err != nil {
		return nil, err
	}

	if genreIDs := args.Strings(keyGenres); len(genreIDs) > 0 {
		hasGenres, err := s.ds.ArtistHasGenres(artist.ID)
		if err != nil {
			return nil, err
		}
		if !hasGenres {
			if _, err := s.resolver.Resolve(datastore.EdgeGenreArtist,
				association.Pairs(artist.ID, genreIDs)); err != nil {
				return nil, err
			}
		}
	}

	if links, ok := args[keyLinks].([]datastore.ArtistLink); ok && len(links) > 0 {
		hasLinks, err := s.ds.ArtistHasLinks(artist.ID)
		if err != nil {
			return nil, err
		}
		if !hasLinks {
			if _, err := s.ds.CreateArtistLinks(links); err != nil {
				return nil, err
			}
		}
	}

	if related, ok := args[keyRelated].([]datastore.Artist); ok && args.Bool(keyPushRelated, true) {
		relatedIDs := make([]string, 0, len(related))
		for _, r := range related {
			relatedIDs = append(relatedIDs, r.ID)
		}
		missing, err := s.ds.MissingArtistIDs(relatedIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range missing {
			dispatchErr := s.exec.Dispatch(Call{Task: "flow_artist", Args: Payload{
				keyArtistID:    id,
				keyCheckDB:     false,
				keyPushRelated: false,
				keyPushDisco:   true,
			}}, nil)
			if dispatchErr != nil {
				s.logger.Warn("related artist dispatch failed",
					"artist_id", id, "error", dispatchErr)
			}
		}
	}

	verified := artist.Verified != nil && *artist.Verified
	if args.Bool(keyPushDisco, false) && verified && args.Object(keyReleases) != nil {
		dispatchErr := s.exec.Dispatch(Call{Task: "push_artist_discography", Args: Payload{
			keyArtistID: artist.ID,
			keyReleases: args.Object(keyReleases),
		}}, nil)
		if dispatchErr != nil {
			s.logger.Warn("discography dispatch failed",
				"artist_id", artist.ID, "error", dispatchErr)
		}
	}

	return Payload{keyArtistID: artist.ID}, nil
}

// pushArtistDiscography bulk-inserts the albums and tracks of an artist's
// primary release groups and links them back to the artist.
func (s *Service) pushArtistDiscography(ctx context.Context, args Payload) (Payload, error) {
	artistID := args.String(keyArtistID)
	releases := args.Object(keyReleases)
	if artistID == "" || releases == nil {
		return Payload{}, nil
	}

	include := parser.DefaultReleaseGroups()
	albums := parser.AlbumsFromReleases(releases, include)
	tracks := parser.TracksFromReleases(releases, include)

	if _, err := s.ds.CreateAlbums(albums); err != nil {
		return nil, err
	}
	albumIDs := make([]string, 0, len(albums))
	for _, a := range albums {
		albumIDs = append(albumIDs, a.ID)
	}
	albumEdges := make([]datastore.EdgePair, 0, len(albumIDs))
	for _, id := range albumIDs {
		albumEdges = append(albumEdges, datastore.EdgePair{PrimaryID: id, RelatedID: artistID})
	}
	if _, err := s.resolver.Resolve(datastore.EdgeAlbumArtist, albumEdges); err != nil {
		return nil, err
	}

	if _, err := s.ds.CreateTracks(tracks); err != nil {
		return nil, err
	}
	trackEdges := make([]datastore.EdgePair, 0, len(tracks))
	for _, t := range tracks {
		trackEdges = append(trackEdges, datastore.EdgePair{PrimaryID: t.ID, RelatedID: artistID})
	}
	if _, err := s.resolver.Resolve(datastore.EdgeTrackArtist, trackEdges); err != nil {
		return nil, err
	}

	return Payload{"albums": len(albums), "tracks": len(tracks)}, nil
}

// flowArtist runs the artist ingestion workflow: an optional database
// short-circuit, then fetch, parse and push dispatched as one chain.
func (s *Service) flowArtist(ctx context.Context, args Payload) (Payload, error) {
	artistID := args.String(keyArtistID)
	if artistID == "" {
		return nil, errors.Newf("flow_artist requires an artist id").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}
	pushDiscography := args.Bool(keyPushDisco, false)

	if args.Bool(keyCheckDB, true) {
		existing, err := s.ds.GetArtist(artistID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Verified != nil && existing.Active != nil {
				// Already fully ingested, nothing to fetch.
				return Payload{}, nil
			}
		} else {
			pushDiscography = true
		}
	}

	workflow := NewChain(
		NewGroup(
			Call{Task: "fetch_artist_info"},
			Call{Task: "fetch_artist_insights"},
			Call{Task: "fetch_artist_about"},
		),
		Call{Task: "parse_artist"},
		Call{Task: "push_artist", Args: Payload{
			keyPushRelated: args.Bool(keyPushRelated, true),
			keyPushDisco:   pushDiscography,
		}},
	)
	return Payload{}, s.exec.Dispatch(workflow, Payload{keyArtistID: artistID})
}

// flowUpdateArtists re-crawls artists that are missing status, genres or
// links.
func (s *Service) flowUpdateArtists(ctx context.Context, args Payload) (Payload, error) {
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 100000)

	artistIDs, err := s.ds.ArtistsMissingData(skip, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("updating artist metadata", "artists", len(artistIDs))

	for _, id := range artistIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		err := s.exec.Dispatch(Call{Task: "flow_artist", Args: Payload{
			keyArtistID:    id,
			keyCheckDB:     false,
			keyPushRelated: true,
			keyPushDisco:   true,
		}}, nil)
		if err != nil {
			s.logger.Warn("artist update dispatch failed", "artist_id", id, "error", err)
		}
	}
	return Payload{"dispatched": len(artistIDs)}, nil
}
