package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-fliptok/internal/logging"

	"go.uber.org/zap"
)

const (
	scanPrompt = `You are the safety reviewer for a short-video social app.
Classify the user-provided comment. Flag harassment, hate, sexual content involving minors,
explicit sexual content, threats, self-harm encouragement, spam and scams.
Respond with JSON only: {"safe": boolean, "categories": [string], "reason": string}.
"categories" lists every violated category and is empty when safe.`

	searchPrompt = `You rank search results for a short-video social app.
You receive a query and a list of candidates (videos and creators) with ids.
Return the ids of the candidates that match the query's meaning, most relevant first.
Never invent ids. Respond with JSON only: {"ids": [string]}.`

	recommendPrompt = `You rank the "For You" feed of a short-video social app.
You receive captions the viewer engaged with before and a list of candidate videos with ids.
Order candidate ids from most to least likely to interest the viewer. Never invent ids.
Respond with JSON only: {"ids": [string]}.`

	sentimentPrompt = `You score the sentiment of a comment on a short-video social app.
Respond with JSON only: {"label": "positive"|"neutral"|"negative", "score": number}
where score is between -1 (very negative) and 1 (very positive).`
)

type validator interface {
	validate() error
}

// Flows wraps each external AI call with request validation and a
// conservative fallback. Only invalid requests surface as errors from the
// read-only flows; provider trouble is logged and replaced by the fallback.
type Flows struct {
	llm     Completer
	stt     Recognizer
	tts     Synthesizer
	cache   *Cache
	timeout time.Duration
	log     *zap.Logger
}

func NewFlows(llm Completer, stt Recognizer, tts Synthesizer, cache *Cache, timeout time.Duration, log *zap.Logger) *Flows {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Flows{
		llm:     llm,
		stt:     stt,
		tts:     tts,
		cache:   cache,
		timeout: timeout,
		log:     logging.OrNop(log).Named("ai"),
	}
}

// ScanContent falls back to unsafe.
func (f *Flows) ScanContent(ctx context.Context, req ScanRequest) (ScanResult, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := req.Validate(); err != nil {
		return ScanResult{}, err
	}

	var p scanPayload
	if err := f.complete(ctx, "scan", scanPrompt, req.Text, &p); err != nil {
		f.degraded("scan", err)
		return ScanResult{Safe: false, Categories: []string{"unverified"}, Reason: "content could not be verified", Fallback: true}, nil
	}
	cats := p.Categories
	if cats == nil {
		cats = []string{}
	}
	return ScanResult{Safe: *p.Safe, Categories: cats, Reason: p.Reason}, nil
}

// Search falls back to an empty list.
func (f *Flows) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := req.Validate(); err != nil {
		return SearchResult{}, err
	}
	if len(req.Candidates) == 0 {
		return SearchResult{IDs: []string{}}, nil
	}

	var cached SearchResult
	if f.cache.get(ctx, "search", req, &cached) {
		return cached, nil
	}

	user, err := json.Marshal(map[string]any{"query": req.Query, "candidates": req.Candidates})
	if err != nil {
		return SearchResult{}, err
	}
	var p idsPayload
	if err := f.complete(ctx, "search", searchPrompt, string(user), &p); err != nil {
		f.degraded("search", err)
		return SearchResult{IDs: []string{}, Fallback: true}, nil
	}

	res := SearchResult{IDs: rankedIDs(p.IDs, req.Candidates, req.Limit)}
	f.remember(ctx, "search", req, res)
	return res, nil
}

// Recommend falls back to an empty list; callers keep their own ordering.
func (f *Flows) Recommend(ctx context.Context, req RecommendRequest) (RecommendResult, error) {
	if err := req.Validate(); err != nil {
		return RecommendResult{}, err
	}
	if len(req.Candidates) == 0 {
		return RecommendResult{IDs: []string{}}, nil
	}

	var cached RecommendResult
	if f.cache.get(ctx, "recommend", req, &cached) {
		return cached, nil
	}

	user, err := json.Marshal(map[string]any{"history": req.History, "candidates": req.Candidates})
	if err != nil {
		return RecommendResult{}, err
	}
	var p idsPayload
	if err := f.complete(ctx, "recommend", recommendPrompt, string(user), &p); err != nil {
		f.degraded("recommend", err)
		return RecommendResult{IDs: []string{}, Fallback: true}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = len(req.Candidates)
	}
	res := RecommendResult{IDs: rankedIDs(p.IDs, req.Candidates, limit)}
	f.remember(ctx, "recommend", req, res)
	return res, nil
}

// Sentiment falls back to neutral.
func (f *Flows) Sentiment(ctx context.Context, req SentimentRequest) (SentimentResult, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := req.Validate(); err != nil {
		return SentimentResult{}, err
	}

	var cached SentimentResult
	if f.cache.get(ctx, "sentiment", req, &cached) {
		return cached, nil
	}

	var p sentimentPayload
	if err := f.complete(ctx, "sentiment", sentimentPrompt, req.Text, &p); err != nil {
		f.degraded("sentiment", err)
		return SentimentResult{Label: SentimentNeutral, Score: 0, Fallback: true}, nil
	}

	res := SentimentResult{Label: p.Label, Score: *p.Score}
	f.remember(ctx, "sentiment", req, res)
	return res, nil
}

// Transcribe falls back to an empty transcript.
func (f *Flows) Transcribe(ctx context.Context, audio []byte) (TranscribeResult, error) {
	if len(audio) == 0 {
		return TranscribeResult{}, fmt.Errorf("%w: audio required", ErrInvalidRequest)
	}
	if f.stt == nil {
		f.degraded("transcribe", ErrUnavailable)
		return TranscribeResult{Fallback: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.stt.Recognize(ctx, audio)
	if err != nil {
		f.degraded("transcribe", err)
		return TranscribeResult{Fallback: true}, nil
	}
	return TranscribeResult{Text: strings.TrimSpace(text)}, nil
}

// Synthesize has no fallback: the caller decides what to do without audio.
func (f *Flows) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if err := validateText("text", text); err != nil {
		return nil, err
	}
	if f.tts == nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.tts.Synthesize(ctx, text)
}

func (f *Flows) complete(ctx context.Context, flow, system, user string, out validator) error {
	if f.llm == nil {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	raw, err := f.llm.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	if err := decodeJSON(raw, out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := out.validate(); err != nil {
		return err
	}
	f.log.Debug("flow completed", zap.String("flow", flow), zap.Duration("took", time.Since(start)))
	return nil
}

func (f *Flows) remember(ctx context.Context, flow string, req, res any) {
	if err := f.cache.set(ctx, flow, req, res); err != nil {
		f.log.Warn("cache write failed", zap.String("flow", flow), zap.Error(err))
	}
}

func (f *Flows) degraded(flow string, err error) {
	level := f.log.Warn
	if errors.Is(err, ErrUnavailable) {
		level = f.log.Debug
	}
	level("flow fell back", zap.String("flow", flow), zap.Error(err))
}

// decodeJSON tolerates markdown fences and prose around the JSON object.
func decodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return errors.New("no json object in response")
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}
