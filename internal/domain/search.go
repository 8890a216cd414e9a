package domain

// SearchState is the lifecycle of the search orchestrator
type SearchState string

const (
	SearchStateIdle      SearchState = "idle"
	SearchStateSearching SearchState = "searching"
	SearchStateSettled   SearchState = "settled"
)

// OutcomeKind tags how the last settled search ended
type OutcomeKind string

const (
	OutcomeNone    OutcomeKind = "none"
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// SearchOutcome separates "no matching products" from "the search failed".
type SearchOutcome struct {
	Kind    OutcomeKind `json:"kind"`
	Reason  string      `json:"reason,omitempty"`
	Total   int         `json:"total"`   // provider results before filtering
	Matched int         `json:"matched"` // products inside the price band
}

// SuccessOutcome builds the outcome of a search that reached the provider
func SuccessOutcome(total, matched int) SearchOutcome {
	return SearchOutcome{Kind: OutcomeSuccess, Total: total, Matched: matched}
}

// FailureOutcome builds the outcome of a search that could not complete
func FailureOutcome(reason string) SearchOutcome {
	return SearchOutcome{Kind: OutcomeFailure, Reason: reason}
}

// Failed reports whether the outcome is a failure
func (o SearchOutcome) Failed() bool {
	return o.Kind == OutcomeFailure
}

// Snapshot is a read-only copy of the orchestrator state handed to renderers
type Snapshot struct {
	Generation           uint64          `json:"generation"`
	State                SearchState     `json:"state"`
	Loading              bool            `json:"loading"`
	Criteria             *SearchCriteria `json:"criteria"`
	Products             []Product       `json:"products"`
	RecommendedProductID *string         `json:"recommendedProductId"`
	Outcome              SearchOutcome   `json:"outcome"`
}

// RecommendedProduct returns the recommended product from the snapshot, if any
func (s Snapshot) RecommendedProduct() (Product, bool) {
	if s.RecommendedProductID == nil {
		return Product{}, false
	}
	for _, p := range s.Products {
		if p.ID == *s.RecommendedProductID {
			return p, true
		}
	}
	return Product{}, false
}
