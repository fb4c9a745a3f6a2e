package main

import "github.com/brensch/hypersonic/store"

// MatchSummary is one archived match in the matches list.
type MatchSummary struct {
	MatchID    string `json:"match_id"`
	Map        string `json:"map"`
	MinRound   int32  `json:"min_round"`
	MaxRound   int32  `json:"max_round"`
	RoundCount int32  `json:"round_count"`
	Width      int32  `json:"width"`
	Height     int32  `json:"height"`
	SourceFile string `json:"file"`
	Digest     string `json:"digest"`
	// Results lists each side and whether it was alive at the end.
	Results string `json:"results"`
}

// MatchesResponse is the paginated response for /api/matches.
type MatchesResponse struct {
	Total   int64          `json:"total"`
	Matches []MatchSummary `json:"matches"`
}

// SimulateRequest steps one frame with the given actions, indexed by agent id.
type SimulateRequest struct {
	Frame   store.Frame `json:"frame"`
	Actions []string    `json:"actions"`
}

// finalAgent is the part of an archived agent the summary needs.
type finalAgent struct {
	ID    int64
	Side  string
	Alive bool
	Boxes int64
}
