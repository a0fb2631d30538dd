// model.go defines the persisted data model for ingested music metadata.
package datastore

import "time"

// Artist is a canonical artist record keyed by its platform identifier.
// Verified and Active are tri-state: nil means the detail endpoints have not
// been scraped yet, which several flows use as a short-circuit check.
type Artist struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"index:idx_artists_name"`
	Verified *bool
	Active   *bool
}

// Album is a canonical album record.
type Album struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"index:idx_albums_name"`
	TotalTracks int
	ReleaseDate time.Time `gorm:"index:idx_albums_release_date;not null"`
	Type        string
	LabelID     string `gorm:"index:idx_albums_label"`
	Cover       string
}

// Track is a canonical track record. TrackNumber is the externally visible
// ordinal, disc number times in-disc number for multi-disc releases.
type Track struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"index:idx_tracks_name"`
	TrackNumber int
	Explicit    *bool
	DurationMs  int
	ISRC        string `gorm:"column:isrc;index:idx_tracks_isrc"`
	PreviewURL  string
	AlbumID     string `gorm:"index:idx_tracks_album"`
}

// Genre rows carry the genre string itself as the identifier, e.g. "rock".
type Genre struct {
	ID string `gorm:"primaryKey"`
}

// ArtistLink is an external social/web link attached to an artist.
type ArtistLink struct {
	Link      string `gorm:"primaryKey"`
	ArtistID  string `gorm:"primaryKey;index:idx_artist_links_artist"`
	LinkType  string
	DateAdded time.Time
}

// Playlist is a canonical playlist record.
type Playlist struct {
	ID      string `gorm:"primaryKey"`
	OwnerID string `gorm:"index:idx_playlists_owner"`
	Name    string `gorm:"index:idx_playlists_name"`
}

// PlatformUser is a streaming-platform user whose library seeds
// recommendation candidate generation.
type PlatformUser struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Followers int
}

// SearchTerm records a term used to discover playlists.
type SearchTerm struct {
	ID string `gorm:"primaryKey"`
}

// TrackPlaycount is a daily playcount observation.
// ID format: <track_id>_<date>, making repeat scrapes of the same day idempotent.
type TrackPlaycount struct {
	ID         string `gorm:"primaryKey"`
	TrackID    string `gorm:"index:idx_track_playcounts_track;not null"`
	Date       time.Time `gorm:"index:idx_track_playcounts_date;not null"`
	Playcount  int64  `gorm:"not null"`
	Popularity int
}

// PlaylistFollowerCount is a daily follower-count observation.
// ID format: <playlist_id>_<date>.
type PlaylistFollowerCount struct {
	ID         string `gorm:"primaryKey"`
	PlaylistID string `gorm:"index:idx_playlist_followers_playlist;not null"`
	Date       time.Time `gorm:"not null"`
	Followers  int    `gorm:"not null"`
}

// Spectrogram stores a precomputed spectrogram blob for a track preview.
type Spectrogram struct {
	ID         uint   `gorm:"primaryKey"`
	TrackID    string `gorm:"uniqueIndex:idx_spectrograms_track_params;not null"`
	SpecType   string `gorm:"uniqueIndex:idx_spectrograms_track_params;not null"`
	HopSize    int    `gorm:"uniqueIndex:idx_spectrograms_track_params;not null"`
	WindowSize int    `gorm:"uniqueIndex:idx_spectrograms_track_params;not null"`
	MelBands   int    `gorm:"uniqueIndex:idx_spectrograms_track_params;not null"`
	IsCorrupt  bool   `gorm:"not null;default:false"`
	Data       []byte
}

// TrackPrediction stores the model's hit probability for a track.
type TrackPrediction struct {
	TrackID     string    `gorm:"primaryKey"`
	ModelID     string    `gorm:"primaryKey"`
	Date        time.Time `gorm:"index:idx_track_predictions_date;not null"`
	Prediction  float64   `gorm:"not null"`
	Probability float64   `gorm:"not null"`
}

// TrackDistance stores a pairwise embedding distance.
// ID format: <src_id>_<tgt_id>_<model_id>_<distance_type> with src_id always
// the lexicographically smaller track id, so (A,B) and (B,A) share one row.
type TrackDistance struct {
	ID           string  `gorm:"primaryKey"`
	SrcID        string  `gorm:"index:idx_track_distances_src;not null"`
	TgtID        string  `gorm:"index:idx_track_distances_tgt;not null"`
	ModelID      string  `gorm:"index:idx_track_distances_model;not null"`
	DistanceType string  `gorm:"not null"`
	Distance     float64 `gorm:"not null"`
}

// Association tables. Composite primary keys give the unique constraints
// that make concurrent duplicate inserts a benign race.

// AlbumArtist links an album to one of its artists.
type AlbumArtist struct {
	AlbumID  string `gorm:"primaryKey"`
	ArtistID string `gorm:"primaryKey"`
}

// TrackArtist links a track to one of its artists.
type TrackArtist struct {
	TrackID  string `gorm:"primaryKey"`
	ArtistID string `gorm:"primaryKey"`
}

// TrackPlaylist links a track to a playlist it appears on.
type TrackPlaylist struct {
	TrackID    string `gorm:"primaryKey"`
	PlaylistID string `gorm:"primaryKey"`
}

// GenreArtist links a genre to an artist.
type GenreArtist struct {
	GenreID  string `gorm:"primaryKey"`
	ArtistID string `gorm:"primaryKey"`
}

// TrackUser links a track to a user library, with provenance.
type TrackUser struct {
	TrackID  string `gorm:"primaryKey"`
	UserID   string `gorm:"primaryKey"`
	TopTrack bool
	Source   string
}

// TermPlaylist links a search term to a playlist it surfaced.
type TermPlaylist struct {
	TermID     string `gorm:"primaryKey"`
	PlaylistID string `gorm:"primaryKey"`
}
