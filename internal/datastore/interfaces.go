// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// EdgeKind selects one of the many-to-many association tables.
type EdgeKind string

const (
	EdgeAlbumArtist   EdgeKind = "album_artist"
	EdgeTrackArtist   EdgeKind = "track_artist"
	EdgeTrackPlaylist EdgeKind = "track_playlist"
	EdgeGenreArtist   EdgeKind = "genre_artist"
	EdgeTrackUser     EdgeKind = "track_user"
	EdgeTermPlaylist  EdgeKind = "term_playlist"
)

// EdgePair is one many-to-many edge, keyed by the owning entity.
type EdgePair struct {
	PrimaryID string
	RelatedID string
}

// TrackRef pairs a track id with its preview URL for fetch flows.
type TrackRef struct {
	ID         string
	PreviewURL string
}

// TrackPair is an unordered candidate pair for distance computation.
type TrackPair struct {
	SrcID string
	TgtID string
}

// CandidatePairOpts bounds the recommendation candidate-pair query.
type CandidatePairOpts struct {
	UserIDs          []string // empty means all users with library tracks
	LagDays          int
	DaysSinceRelease int
	HitLimit         int
	HitThreshold     float64
	ModelID          string
	DistanceType     string
	Skip             int
	Limit            int
}

// SpectrogramParams identifies one spectrogram variant of a track.
type SpectrogramParams struct {
	SpecType   string
	HopSize    int
	WindowSize int
	MelBands   int
}

// Interface abstracts the underlying database implementation and defines the
// persistence operations the flows depend on. All Create operations are
// idempotent: a unique-constraint violation is logged and treated as
// already-present, never propagated as failure.
type Interface interface {
	Open() error
	Close() error

	// Artists
	GetArtist(id string) (*Artist, error)
	CreateArtist(artist *Artist) error
	CreateArtists(artists []Artist) (int, error)
	UpdateArtistStatus(existing, incoming *Artist) error
	MissingArtistIDs(ids []string) ([]string, error)
	ArtistsMissingData(skip, limit int) ([]string, error)
	ArtistHasGenres(id string) (bool, error)
	ArtistHasLinks(id string) (bool, error)
	CreateArtistLinks(links []ArtistLink) (int, error)

	// Albums
	GetAlbum(id string) (*Album, error)
	CreateAlbum(album *Album) error
	CreateAlbums(albums []Album) (int, error)
	UpdateAlbums(albums []Album) (int, error)
	MissingAlbumIDs(ids []string) ([]string, error)
	AlbumsMissingMetadata(minDate, maxDate time.Time, skip, limit int) ([]string, error)
	AlbumsMissingPlaycounts(minDate, maxDate time.Time, verifiedOnly bool, skip, limit int) ([]string, error)

	// Tracks
	GetTrack(id string) (*Track, error)
	CreateTrack(track *Track) error
	CreateTracks(tracks []Track) (int, error)
	UpdateTracks(tracks []Track) (int, error)
	MissingTrackIDs(ids []string) ([]string, error)
	TracksMissingPreviewURL(skip, limit int) ([]string, error)
	RisingTracksMissingSpectrograms(lagDays, skip, limit int) ([]TrackRef, error)
	TracksMissingPredictions(modelID string, lagDays, skip, limit int) ([]string, error)
	CreateTrackPlaycounts(playcounts []TrackPlaycount) (int, error)
	CreateTrackPredictions(predictions []TrackPrediction) (int, error)

	// Playlists and users
	GetPlaylist(id string) (*Playlist, error)
	CreatePlaylist(playlist *Playlist) error
	PopularPlaylists(skip, limit int) ([]string, error)
	CreatePlaylistFollowerCount(count *PlaylistFollowerCount) error
	CreatePlatformUser(user *PlatformUser) error
	CreateSearchTerm(term *SearchTerm) error
	CreateTrackUsers(rows []TrackUser) (int, error)
	UserTrackIDs(userID string) ([]string, error)

	// Spectrograms
	CreateSpectrogram(spec *Spectrogram) error
	SpectrogramsByTrackIDs(trackIDs []string, params SpectrogramParams) ([]Spectrogram, error)
	MarkSpectrogramCorrupt(id uint) error

	// Distances
	GetTrackDistance(t1, t2, modelID, distanceType string) (*TrackDistance, error)
	CreateTrackDistance(t1, t2, modelID, distanceType string, distance float64) (*TrackDistance, error)
	CandidateDistancePairs(opts CandidatePairOpts) ([]TrackPair, error)

	// Association edges
	ExistingEdges(kind EdgeKind, primaryIDs []string) ([]EdgePair, error)
	InsertEdges(kind EdgeKind, pairs []EdgePair) (int, error)
	EnsureGenres(ids []string) (int, error)

	// Read API support
	ListArtists(skip, limit int) ([]Artist, error)
	ListTracks(skip, limit int) ([]Track, error)
	ListAlbums(skip, limit int) ([]Album, error)
	ListPlaylists(skip, limit int) ([]Playlist, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a store for whichever backend the configuration enables.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting generic database object: %w", err)
	}
	return sqlDB.Close()
}
