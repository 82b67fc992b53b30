package resolver

import (
	"strconv"
	"strings"
)

// query is the parsed form of a search string. Field pins and bpm ranges are
// hard filters; free text and pins score; quoted phrases must appear verbatim.
type query struct {
	free    []string          // free-text tokens
	fields  map[string]string // title/artist/album pins
	phrases []string          // quoted substrings, lowercased
	bpmLo   float64           // 0 = unbounded
	bpmHi   float64           // 0 = unbounded
}

func (q query) freeText() string {
	return strings.Join(q.free, " ")
}

func (q query) hasScoringTerms() bool {
	return len(q.free) > 0 || len(q.fields) > 0
}

// parseQuery tokenizes a search string. Malformed constructs degrade to free
// text rather than failing; the resolver never rejects a query outright.
func parseQuery(text string) query {
	q := query{fields: make(map[string]string)}

	for _, tok := range splitQuery(text) {
		if tok.quoted {
			q.phrases = append(q.phrases, strings.ToLower(tok.text))
			continue
		}
		field, value, ok := strings.Cut(tok.text, ":")
		if !ok {
			q.free = append(q.free, tok.text)
			continue
		}
		switch strings.ToLower(field) {
		case "bpm":
			if lo, hi, ok := parseBPMRange(value); ok {
				q.bpmLo, q.bpmHi = lo, hi
			} else {
				q.free = append(q.free, tok.text)
			}
		case "title", "artist", "album":
			if value == "" {
				q.free = append(q.free, tok.text)
				continue
			}
			q.fields[strings.ToLower(field)] = value
		default:
			q.free = append(q.free, tok.text)
		}
	}
	return q
}

type token struct {
	text   string
	quoted bool
}

// splitQuery splits on whitespace, keeping double-quoted runs together. A
// quote directly after "field:" binds the quoted run to that field.
func splitQuery(text string) []token {
	var toks []token
	var cur strings.Builder
	inQuote := false
	quoted := false

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String(), quoted: quoted})
			cur.Reset()
		}
		quoted = false
	}

	for _, r := range text {
		switch {
		case r == '"':
			if inQuote {
				inQuote = false
				flush()
			} else {
				inQuote = true
				if cur.Len() == 0 {
					quoted = true
				}
				// "field:"..."" keeps building the same token
			}
		case r == ' ' || r == '\t' || r == '\n':
			if inQuote {
				cur.WriteRune(r)
			} else {
				flush()
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// parseBPMRange parses "lo..hi", "lo..", "..hi", or a single value (taken as
// a +-2 window).
func parseBPMRange(s string) (lo, hi float64, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	if loStr, hiStr, found := strings.Cut(s, ".."); found {
		if loStr != "" {
			v, err := strconv.ParseFloat(loStr, 64)
			if err != nil {
				return 0, 0, false
			}
			lo = v
		}
		if hiStr != "" {
			v, err := strconv.ParseFloat(hiStr, 64)
			if err != nil {
				return 0, 0, false
			}
			hi = v
		}
		if lo == 0 && hi == 0 {
			return 0, 0, false
		}
		return lo, hi, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, false
	}
	return v - 2, v + 2, true
}
