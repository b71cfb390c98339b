package ai

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	maxTextRunes  = 2000
	maxCandidates = 200
	defaultLimit  = 20
)

var (
	ErrInvalidRequest = errors.New("invalid ai request")
	ErrUnavailable    = errors.New("ai provider not configured")
	ErrSafetyBlocked  = errors.New("ai response blocked by safety filter")
	errMalformed      = errors.New("malformed ai response")
)

type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ScanRequest struct {
	Text string `json:"text"`
}

type ScanResult struct {
	Safe       bool     `json:"safe"`
	Categories []string `json:"categories"`
	Reason     string   `json:"reason,omitempty"`
	Fallback   bool     `json:"fallback"`
}

type SearchRequest struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	Limit      int         `json:"limit,omitempty"`
}

type SearchResult struct {
	IDs      []string `json:"ids"`
	Fallback bool     `json:"fallback"`
}

type RecommendRequest struct {
	UserID     string      `json:"user_id"`
	History    []string    `json:"history"`
	Candidates []Candidate `json:"candidates"`
	Limit      int         `json:"limit,omitempty"`
}

type RecommendResult struct {
	IDs      []string `json:"ids"`
	Fallback bool     `json:"fallback"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type SentimentRequest struct {
	Text string `json:"text"`
}

type SentimentResult struct {
	Label    Sentiment `json:"label"`
	Score    float64   `json:"score"`
	Fallback bool      `json:"fallback"`
}

type TranscribeResult struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

func (r ScanRequest) Validate() error {
	return validateText("text", r.Text)
}

func (r SearchRequest) Validate() error {
	if err := validateText("query", r.Query); err != nil {
		return err
	}
	return validateCandidates(r.Candidates)
}

func (r RecommendRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	}
	return validateCandidates(r.Candidates)
}

func (r SentimentRequest) Validate() error {
	return validateText("text", r.Text)
}

func validateText(field, s string) error {
	if s == "" {
		return fmt.Errorf("%w: %s required", ErrInvalidRequest, field)
	}
	if utf8.RuneCountInString(s) > maxTextRunes {
		return fmt.Errorf("%w: %s longer than %d characters", ErrInvalidRequest, field, maxTextRunes)
	}
	return nil
}

func validateCandidates(cs []Candidate) error {
	if len(cs) > maxCandidates {
		return fmt.Errorf("%w: at most %d candidates", ErrInvalidRequest, maxCandidates)
	}
	for _, c := range cs {
		if c.ID == "" {
			return fmt.Errorf("%w: candidate id required", ErrInvalidRequest)
		}
	}
	return nil
}

// Raw model payloads. Pointers detect missing fields.

type scanPayload struct {
	Safe       *bool    `json:"safe"`
	Categories []string `json:"categories"`
	Reason     string   `json:"reason"`
}

func (p scanPayload) validate() error {
	if p.Safe == nil {
		return fmt.Errorf("%w: safe missing", errMalformed)
	}
	return nil
}

type idsPayload struct {
	IDs []string `json:"ids"`
}

func (p idsPayload) validate() error {
	if p.IDs == nil {
		return fmt.Errorf("%w: ids missing", errMalformed)
	}
	return nil
}

type sentimentPayload struct {
	Label Sentiment `json:"label"`
	Score *float64  `json:"score"`
}

func (p sentimentPayload) validate() error {
	switch p.Label {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("%w: label %q", errMalformed, p.Label)
	}
	if p.Score == nil || *p.Score < -1 || *p.Score > 1 {
		return fmt.Errorf("%w: score out of range", errMalformed)
	}
	return nil
}

// rankedIDs keeps ids that name a candidate, once each, in model order.
func rankedIDs(ids []string, candidates []Candidate, limit int) []string {
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
