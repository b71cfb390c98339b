package actions

import "backend-fliptok/internal/ai"

// Response is the envelope every action returns. Error carries toast text
// when a fallback was substituted, or the validation message on 400.
type Response struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchResult struct {
	Videos   []string `json:"videos"`
	Users    []string `json:"users"`
	Fallback bool     `json:"fallback"`
}

type RecommendRequest struct {
	History    []string       `json:"history"`
	Candidates []ai.Candidate `json:"candidates"`
	Limit      int            `json:"limit,omitempty"`
}

type SpeakRequest struct {
	Text string `json:"text"`
}

type SpeakResult struct {
	URL      string `json:"url,omitempty"`
	Fallback bool   `json:"fallback"`
}

const (
	msgScan       = "We couldn't check this right now. Please try again in a moment."
	msgSearch     = "Search is having trouble right now. Try again shortly."
	msgRecommend  = "Personal picks are unavailable, showing the latest videos instead."
	msgSentiment  = "We couldn't read the mood of this text."
	msgTranscribe = "We couldn't transcribe that recording."
	msgSpeak      = "Voice playback is unavailable right now."
	msgInternal   = "Something went wrong. Please try again."
)
