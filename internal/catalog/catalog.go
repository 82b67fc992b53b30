// Package catalog holds the immutable track library snapshot a session mixes
// from. It is loaded once at startup; nothing in the engine mutates it.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Track is one catalog record. Immutable once loaded; other packages refer to
// tracks by ID.
type Track struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist,omitempty"`
	Album     string  `json:"album,omitempty"`
	Path      string  `json:"path"`
	VocalPath string  `json:"vocal_path,omitempty"` // isolated vocal stem, if one exists
	BPM       float64 `json:"bpm,omitempty"`
	Key       Key     `json:"key"`
	Energy    int     `json:"energy,omitempty"` // ordinal 1..10, 0 = untagged
}

func (t Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " - " + t.Artist
}

// SearchText returns the lowercased text the resolver's phrase filter scans.
func (t Track) SearchText() string {
	return strings.ToLower(strings.TrimSpace(t.Title + " " + t.Artist + " " + t.Album))
}

// Catalog is an immutable set of tracks with ID lookup.
type Catalog struct {
	tracks []Track
	index  map[string]int
}

// New builds a catalog from records, rejecting duplicate or empty IDs.
func New(tracks []Track) (*Catalog, error) {
	index := make(map[string]int, len(tracks))
	for i, t := range tracks {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: track %d (%q) has no id", i, t.Title)
		}
		if t.Title == "" {
			return nil, fmt.Errorf("catalog: track %q has no title", t.ID)
		}
		if _, dup := index[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate track id %q", t.ID)
		}
		index[t.ID] = i
	}
	return &Catalog{tracks: tracks, index: index}, nil
}

// Load reads a JSON array of track records from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return New(tracks)
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Tracks returns the snapshot's records. Callers must not modify the slice.
func (c *Catalog) Tracks() []Track {
	return c.tracks
}

// Get looks a track up by ID.
func (c *Catalog) Get(id string) (Track, bool) {
	i, ok := c.index[id]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}
