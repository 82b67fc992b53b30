package engine

// Status is a point-in-time view of the session, rebuilt every tick and
// served verbatim over the API.
type Status struct {
	SessionID string  `json:"session_id"`
	Beat      float64 `json:"beat"`
	Bar       int     `json:"bar"`
	Phrase    int     `json:"phrase"`
	Tempo     float64 `json:"tempo"`
	Playing   bool    `json:"playing"`
	Paused    bool    `json:"paused"`
	Master    string  `json:"master,omitempty"`

	Decks      []DeckStatus      `json:"decks"`
	Transition *TransitionStatus `json:"transition,omitempty"`
	Pending    []ActionStatus    `json:"pending,omitempty"`
	Held       *HeldStatus       `json:"held,omitempty"`
	Vocals     *VocalStatus      `json:"vocals,omitempty"`
	Played     []string          `json:"played,omitempty"`

	// LastOutcome is the most recent scheduling result, for UI feedback.
	LastOutcome string `json:"last_outcome"`
}

// DeckStatus reports one deck.
type DeckStatus struct {
	Name         string  `json:"name"`
	State        string  `json:"state"`
	TrackID      string  `json:"track_id,omitempty"`
	Title        string  `json:"title,omitempty"`
	Artist       string  `json:"artist,omitempty"`
	BPM          float64 `json:"bpm,omitempty"`
	Key          string  `json:"key,omitempty"`
	Gain         float64 `json:"gain"`
	Master       bool    `json:"master"`
	Synced       bool    `json:"synced"`
	SyncDisabled bool    `json:"sync_disabled,omitempty"`
	Position     float64 `json:"position,omitempty"`     // seconds into the track
	SessionBeat  float64 `json:"session_beat,omitempty"` // position on the session timeline
}

// TransitionStatus reports the crossfade in flight, if any.
type TransitionStatus struct {
	From      string  `json:"from"`
	To        string  `json:"to,omitempty"`
	Shape     string  `json:"shape"`
	StartBeat float64 `json:"start_beat"`
	EndBeat   float64 `json:"end_beat"`
}

// ActionStatus reports one scheduled action still waiting for its beat.
type ActionStatus struct {
	Token      string  `json:"token"`
	Kind       string  `json:"kind"`
	Deck       string  `json:"deck"`
	TargetBeat float64 `json:"target_beat"`
	Note       string  `json:"note,omitempty"`
}

// HeldStatus reports an unresolved intent waiting for a follow-up.
type HeldStatus struct {
	Intent      string  `json:"intent"`
	Reason      string  `json:"reason"`
	ExpiresBeat float64 `json:"expires_beat"`
}

// VocalStatus reports the auxiliary vocal stem layer.
type VocalStatus struct {
	TrackID string  `json:"track_id"`
	Gain    float64 `json:"gain"`
}
