package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth surfacing in logs. Candidate-set
// queries over playcount history can legitimately take a few hundred ms.
const slowQueryThreshold = 1 * time.Second

// createGormLogger configures GORM logging at warn level so routine inserts
// stay quiet and only slow queries and errors surface.
func createGormLogger() gormlogger.Interface {
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

// performAutoMigration migrates all tables and indexes for the data model.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Artist{},
		&Album{},
		&Track{},
		&Genre{},
		&ArtistLink{},
		&Playlist{},
		&PlatformUser{},
		&SearchTerm{},
		&TrackPlaycount{},
		&PlaylistFollowerCount{},
		&Spectrogram{},
		&TrackPrediction{},
		&TrackDistance{},
		&AlbumArtist{},
		&TrackArtist{},
		&TrackPlaylist{},
		&GenreArtist{},
		&TrackUser{},
		&TermPlaylist{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		slog.Debug("database initialized", "type", dbType, "connection", connectionInfo)
	}
	return nil
}
