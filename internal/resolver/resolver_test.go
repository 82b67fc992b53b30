package resolver

import (
	"errors"
	"testing"

	"github.com/seguelabs/segue/internal/catalog"
)

func testCatalog(t *testing.T, tracks ...catalog.Track) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(tracks)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func key(t *testing.T, s string) catalog.Key {
	t.Helper()
	k, err := catalog.ParseKey(s)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// --- Query parsing ---

func TestParseQueryFields(t *testing.T) {
	q := parseQuery(`monday artist:new bpm:120..140 "blue monday"`)
	if len(q.free) != 1 || q.free[0] != "monday" {
		t.Errorf("free = %v, want [monday]", q.free)
	}
	if q.fields["artist"] != "new" {
		t.Errorf("artist pin = %q, want new", q.fields["artist"])
	}
	if q.bpmLo != 120 || q.bpmHi != 140 {
		t.Errorf("bpm range = %v..%v, want 120..140", q.bpmLo, q.bpmHi)
	}
	if len(q.phrases) != 1 || q.phrases[0] != "blue monday" {
		t.Errorf("phrases = %v", q.phrases)
	}
}

func TestParseQueryBPMForms(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi float64
	}{
		{"bpm:100..120", 100, 120},
		{"bpm:..120", 0, 120},
		{"bpm:100..", 100, 0},
		{"bpm:107", 105, 109}, // single value widens to a +-2 window
	}
	for _, tt := range tests {
		q := parseQuery(tt.in)
		if q.bpmLo != tt.lo || q.bpmHi != tt.hi {
			t.Errorf("parseQuery(%q) bpm = %v..%v, want %v..%v", tt.in, q.bpmLo, q.bpmHi, tt.lo, tt.hi)
		}
	}
}

func TestParseQueryMalformedBPMFallsBack(t *testing.T) {
	q := parseQuery("bpm:fast")
	if q.bpmLo != 0 || q.bpmHi != 0 {
		t.Errorf("malformed bpm parsed as range %v..%v", q.bpmLo, q.bpmHi)
	}
	if len(q.free) != 1 || q.free[0] != "bpm:fast" {
		t.Errorf("malformed bpm not kept as free text: %v", q.free)
	}
}

func TestParseQueryQuotedFieldValue(t *testing.T) {
	q := parseQuery(`artist:"roisin murphy"`)
	if q.fields["artist"] != "roisin murphy" {
		t.Errorf("quoted pin = %q, want \"roisin murphy\"", q.fields["artist"])
	}
}

// --- Resolution ---

func TestResolveExactTitle(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Titi Me Pregunto", Artist: "Bad Bunny", BPM: 107, Key: key(t, "F# minor")},
		catalog.Track{ID: "t2", Title: "Blue Monday", Artist: "New Order", BPM: 130, Key: key(t, "C major")},
		catalog.Track{ID: "t3", Title: "Around the World", Artist: "Daft Punk", BPM: 121, Key: key(t, "A minor")},
	)
	r := New(c, 0.70)

	tr, err := r.Resolve("titi me pregunto")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.ID != "t1" {
		t.Errorf("resolved %s, want t1", tr.ID)
	}
}

func TestResolvePartialTitle(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Titi Me Pregunto", Artist: "Bad Bunny", BPM: 107},
		catalog.Track{ID: "t2", Title: "Blue Monday", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)

	tr, err := r.Resolve("titi")
	if err != nil {
		t.Fatalf("Resolve(titi): %v", err)
	}
	if tr.ID != "t1" {
		t.Errorf("resolved %s, want t1", tr.ID)
	}

	matches := r.Query("titi")
	if len(matches) == 0 || matches[0].Confidence < 0.70 {
		t.Errorf("top confidence for partial title = %v, want >= threshold", matches)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Blue Monday", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)
	tr, err := r.Resolve("BLUE MONDAY")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.ID != "t1" {
		t.Errorf("resolved %s, want t1", tr.ID)
	}
}

func TestResolveBelowThreshold(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Blue Monday", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)
	_, err := r.Resolve("xxqz vvwk")
	if !errors.Is(err, ErrBelowThreshold) {
		t.Errorf("err = %v, want ErrBelowThreshold", err)
	}
}

func TestResolveAmbiguousTie(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Blue Monday", Artist: "New Order", BPM: 130},
		catalog.Track{ID: "t2", Title: "Blue Monday (Remix)", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)
	_, err := r.Resolve("blue monday")
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}

func TestResolveByArtistFreeText(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Titi Me Pregunto", Artist: "Bad Bunny", BPM: 107},
		catalog.Track{ID: "t2", Title: "Blue Monday", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)
	tr, err := r.Resolve("bad bunny")
	if err != nil {
		t.Fatalf("Resolve(bad bunny): %v", err)
	}
	if tr.ID != "t1" {
		t.Errorf("resolved %s, want t1", tr.ID)
	}
}

func TestArtistPinFiltersOtherArtists(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Monday Blues", Artist: "Bad Bunny", BPM: 107},
		catalog.Track{ID: "t2", Title: "Blue Monday", Artist: "New Order", BPM: 130},
	)
	r := New(c, 0.70)
	tr, err := r.Resolve("monday artist:new")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.ID != "t2" {
		t.Errorf("resolved %s, want t2", tr.ID)
	}
}

func TestBPMFilter(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Slow One", BPM: 90},
		catalog.Track{ID: "t2", Title: "Fast One", BPM: 150},
	)
	r := New(c, 0.70)

	matches := r.Query("one bpm:140..160")
	if len(matches) != 1 || matches[0].Track.ID != "t2" {
		t.Fatalf("bpm-filtered matches = %v, want only t2", matches)
	}
}

func TestPhraseFilter(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Titi Me Pregunto", Artist: "Bad Bunny", BPM: 107},
		catalog.Track{ID: "t2", Title: "Me and You", Artist: "Someone", BPM: 110},
	)
	r := New(c, 0.70)

	matches := r.Query(`me "me pregunto"`)
	if len(matches) != 1 || matches[0].Track.ID != "t1" {
		t.Fatalf("phrase-filtered matches = %v, want only t1", matches)
	}
}

func TestFilterOnlyQueryRanksEverything(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "A", BPM: 120},
		catalog.Track{ID: "t2", Title: "B", BPM: 125},
		catalog.Track{ID: "t3", Title: "C", BPM: 170},
	)
	r := New(c, 0.70)

	matches := r.Query("bpm:115..130")
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Confidence != 1.0 {
			t.Errorf("filter-only confidence = %v, want 1.0", m.Confidence)
		}
	}

	// Two equal candidates cannot be resolved to one.
	if _, err := r.Resolve("bpm:115..130"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}

func TestQueryRankingOrder(t *testing.T) {
	c := testCatalog(t,
		catalog.Track{ID: "t1", Title: "Titi Me Pregunto", Artist: "Bad Bunny", BPM: 107},
		catalog.Track{ID: "t2", Title: "Time", Artist: "Pink Floyd", BPM: 120},
	)
	r := New(c, 0.70)

	matches := r.Query("titi")
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if matches[0].Track.ID != "t1" {
		t.Errorf("top match = %s, want t1", matches[0].Track.ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("matches not sorted: %v before %v", matches[i-1].Confidence, matches[i].Confidence)
		}
	}
}
