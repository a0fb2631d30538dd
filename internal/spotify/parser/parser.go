// Package parser canonicalizes raw platform JSON into datastore entities.
// Parsers are tolerant by contract: a malformed or unresolvable input yields
// nil (or is skipped from a list result), never an error, so one bad entry
// cannot abort a batch.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sentinelYear stands in for releases whose year the platform reports as 0.
const sentinelYear = 1600

// URIToID extracts the resource identifier from a platform URI such as
// "spotify:track:33n9hKYymXgXV0p6j2zYp9". Anything that does not split into
// exactly three segments yields the empty string.
func URIToID(uri string) string {
	parts := strings.Split(uri, ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// playlistURIParts splits a playlist URI of the form
// "spotify:user:<owner>:playlist:<id>" into owner and playlist identifiers.
func playlistURIParts(uri string) (ownerID, playlistID string, ok bool) {
	parts := strings.Split(uri, ":")
	if len(parts) != 5 {
		return "", "", false
	}
	return parts[2], parts[4], true
}

// CombineDate resolves the two release-date conventions the platform uses
// into a single date. API objects carry "release_date" plus a precision of
// day, month or year; client objects carry separate year/month/day integers.
// Missing components default to January 1st, and a zero year becomes the
// sentinel 1600 so unknown releases sort before everything real.
func CombineDate(releaseDate, precision string, year, month, day int64) (time.Time, error) {
	if releaseDate != "" && precision != "" {
		switch precision {
		case "day":
			return time.Parse("2006-01-02", releaseDate)
		case "month":
			return time.Parse("2006-01-02", releaseDate+"-01")
		default:
			y, err := strconv.Atoi(releaseDate)
			if err != nil {
				return time.Time{}, fmt.Errorf("release date %q with year precision: %w", releaseDate, err)
			}
			if y == 0 {
				y = sentinelYear
			}
			return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
	}

	if year == 0 {
		year = sentinelYear
	}
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC), nil
}

// dateStampID builds the "<id>_<YYYY-MM-DD>" identifier used by the daily
// observation tables.
func dateStampID(id string, date time.Time) string {
	return id + "_" + date.Format("2006-01-02")
}
