package domain

type EventType string

const (
	EventStart          EventType = "start"
	EventProgress       EventType = "progress"
	EventVisionProgress EventType = "vision_progress"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
	EventPing           EventType = "ping"
)

// StreamEvent is one frame on the long-lived response stream. Substantive
// events are ordered and at-most-once per stage; pings may interleave anywhere.
type StreamEvent struct {
	Type    EventType
	Payload any
}

type Stage string

const (
	StageEmbedding          Stage = "embedding"
	StageRetrieving         Stage = "retrieving"
	StageFiltering          Stage = "filtering"
	StageEnhancing          Stage = "enhancing"
	StageRanking            Stage = "ranking"
	StageVisionValidating   Stage = "vision_validating"
	StageVerifyingOwnership Stage = "verifying_ownership"
)

type StartPayload struct {
	SearchType SearchType `json:"searchType"`
}

type ProgressPayload struct {
	Stage       Stage  `json:"stage"`
	Message     string `json:"message"`
	Educational string `json:"educational,omitempty"`
}

type VisionProgressPayload struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	Message     string `json:"message"`
	Educational string `json:"educational,omitempty"`
}

type CompletePayload struct {
	Success    bool              `json:"success"`
	SearchType SearchType        `json:"searchType"`
	Photos     []RankedCandidate `json:"photos"`
	Count      int               `json:"count"`
}

type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}
