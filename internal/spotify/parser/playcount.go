package parser

import (
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

// PlaycountFromJSON canonicalizes one client disc-listing track into a daily
// playcount observation stamped with the given date. Tracks without a URI or
// a positive playcount yield nil.
func PlaycountFromJSON(obj *jason.Object, date time.Time) *datastore.TrackPlaycount {
	if obj == nil {
		return nil
	}
	uri, _ := obj.GetString("uri")
	trackID := URIToID(uri)
	if trackID == "" {
		return nil
	}
	playcount, err := obj.GetInt64("playcount")
	if err != nil || playcount == 0 {
		return nil
	}

	tp := &datastore.TrackPlaycount{
		ID:        dateStampID(trackID, date),
		TrackID:   trackID,
		Date:      date,
		Playcount: playcount,
	}
	if popularity, err := obj.GetInt64("popularity"); err == nil {
		tp.Popularity = int(popularity)
	}
	return tp
}

// PlaycountsFromAlbum canonicalizes every track of a client album-playcount
// object into observations for today.
func PlaycountsFromAlbum(obj *jason.Object) []datastore.TrackPlaycount {
	if obj == nil {
		return nil
	}
	discs, err := obj.GetObjectArray("discs")
	if err != nil {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var playcounts []datastore.TrackPlaycount
	for _, disc := range discs {
		trackObjs, err := disc.GetObjectArray("tracks")
		if err != nil {
			continue
		}
		for _, trackObj := range trackObjs {
			if tp := PlaycountFromJSON(trackObj, today); tp != nil {
				playcounts = append(playcounts, *tp)
			}
		}
	}
	return playcounts
}
