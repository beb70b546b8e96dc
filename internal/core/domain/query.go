package domain

type SearchType string

const (
	SearchTypeText  SearchType = "text"
	SearchTypeImage SearchType = "image"
)

type Intent string

const (
	IntentBroad       Intent = "broad"
	IntentSpecific    Intent = "specific"
	IntentTemporal    Intent = "temporal"
	IntentCategorical Intent = "categorical"
)

// NormalizeIntent maps unknown classifier output onto the broad bucket.
func NormalizeIntent(raw string) Intent {
	switch Intent(raw) {
	case IntentBroad, IntentSpecific, IntentTemporal, IntentCategorical:
		return Intent(raw)
	default:
		return IntentBroad
	}
}

// Query is one search request. Exactly one of Text/ImageData must be set.
type Query struct {
	Text      string
	ImageData []byte
	ImageMime string
	Context   string
	UserID    string
}

func (q Query) Type() SearchType {
	if len(q.ImageData) > 0 {
		return SearchTypeImage
	}
	return SearchTypeText
}

func (q Query) Validate() error {
	hasText := q.Text != ""
	hasImage := len(q.ImageData) > 0
	if hasText == hasImage {
		return WrapError(ErrInvalidInput, "validate query", errExactlyOne)
	}
	if q.UserID == "" {
		return WrapError(ErrUnauthorized, "validate query", errMissingUser)
	}
	return nil
}

// Description is the text the vision arbiter judges candidates against.
// Image queries fall back to the optional free-text context.
func (q Query) Description() string {
	if q.Text != "" {
		return q.Text
	}
	return q.Context
}

type TemporalHints struct {
	Season    string `json:"season,omitempty"`
	TimeOfDay string `json:"timeOfDay,omitempty"`
	TimeRange string `json:"timeRange,omitempty"`
}

func (h TemporalHints) Empty() bool {
	return h.Season == "" && h.TimeOfDay == "" && h.TimeRange == ""
}

type ContextualHints struct {
	People     []string `json:"people,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	Activities []string `json:"activities,omitempty"`
	Objects    []string `json:"objects,omitempty"`
	Emotions   []string `json:"emotions,omitempty"`
}

// EnhancedQuery is the structured intent produced once per text query.
type EnhancedQuery struct {
	Original   string          `json:"original"`
	Enhanced   string          `json:"enhanced"`
	Keywords   []string        `json:"keywords"`
	Temporal   TemporalHints   `json:"temporalHints"`
	Contextual ContextualHints `json:"contextualHints"`
	Intent     Intent          `json:"intent"`
}

// QueryVectors carries one vector per configured embedding space.
// Image queries populate only the clip space.
type QueryVectors struct {
	Caption []float32
	Clip    []float32
}
