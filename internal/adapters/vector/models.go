package vector

// Point is one vector plus the payload filtered searches match against
type Point struct {
	// ID is any stable string identity; it is folded to a deterministic
	// UUID before it reaches the store
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the per-point metadata both collections carry
type Payload struct {
	RepoID   int64 `json:"repoId"`
	PRNumber int   `json:"prNumber"`
	PRID     int64 `json:"prId"`
}

// Scored is one k-NN hit
type Scored struct {
	Score   float64
	Payload Payload
}

// SearchQuery bounds one k-NN search
type SearchQuery struct {
	Limit  int
	Filter Filter
}

// Filter restricts matches by payload fields; zero fields do not filter
type Filter struct {
	RepoID int64
}

func (f Filter) wire() *filterWire {
	if f.RepoID == 0 {
		return nil
	}
	return &filterWire{
		Must: []conditionWire{{Key: "repoId", Match: matchWire{Value: f.RepoID}}},
	}
}

// Wire shapes for the store's REST surface. Responses arrive wrapped in a
// result envelope

type envelope[T any] struct {
	Result T      `json:"result"`
	Status string `json:"status"`
}

type vectorsConfigWire struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionWire struct {
	Vectors vectorsConfigWire `json:"vectors"`
}

type collectionInfoWire struct {
	Config struct {
		Params struct {
			Vectors vectorsConfigWire `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type pointWire struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

type upsertWire struct {
	Points []pointWire `json:"points"`
}

type searchWire struct {
	Vector      []float32   `json:"vector"`
	Limit       int         `json:"limit"`
	WithPayload bool        `json:"with_payload"`
	Filter      *filterWire `json:"filter,omitempty"`
}

type scoredWire struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

type deleteWire struct {
	Filter *filterWire `json:"filter,omitempty"`
}

type pointDetailWire struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

type filterWire struct {
	Must []conditionWire `json:"must"`
}

type conditionWire struct {
	Key   string    `json:"key"`
	Match matchWire `json:"match"`
}

type matchWire struct {
	Value any `json:"value"`
}
