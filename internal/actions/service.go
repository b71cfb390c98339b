package actions

import (
	"context"
	"errors"
	"strings"

	"backend-fliptok/internal/ai"
	"backend-fliptok/internal/logging"
	"backend-fliptok/internal/profile"
	"backend-fliptok/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	videoPrefix = "video:"
	userPrefix  = "user:"

	// Together these stay within the flow's candidate cap.
	videoCandidates = 120
	userCandidates  = 80
)

type Flows interface {
	ScanContent(ctx context.Context, req ai.ScanRequest) (ai.ScanResult, error)
	Search(ctx context.Context, req ai.SearchRequest) (ai.SearchResult, error)
	Recommend(ctx context.Context, req ai.RecommendRequest) (ai.RecommendResult, error)
	Sentiment(ctx context.Context, req ai.SentimentRequest) (ai.SentimentResult, error)
	Transcribe(ctx context.Context, audio []byte) (ai.TranscribeResult, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type VideoCatalog interface {
	Candidates(ctx context.Context, limit int) ([]ai.Candidate, error)
}

type PeopleCatalog interface {
	Recent(ctx context.Context, limit int) ([]profile.Profile, error)
}

type ObjectStore interface {
	Put(ctx context.Context, userID string, kind storage.Kind, name string, data []byte) (storage.Object, error)
}

// Service runs exactly one flow per action, gathering candidates from the
// catalog where the flow needs them.
type Service struct {
	flows  Flows
	videos VideoCatalog
	people PeopleCatalog
	store  ObjectStore
	log    *zap.Logger
}

func NewService(flows Flows, videos VideoCatalog, people PeopleCatalog, store ObjectStore, log *zap.Logger) *Service {
	return &Service{
		flows:  flows,
		videos: videos,
		people: people,
		store:  store,
		log:    logging.OrNop(log).Named("actions"),
	}
}

func (s *Service) Scan(ctx context.Context, req ai.ScanRequest) (ai.ScanResult, error) {
	return s.flows.ScanContent(ctx, req)
}

// Search ranks feed captions and creator profiles together and splits the
// ranking back into videos and users.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return SearchResult{}, ai.ErrInvalidRequest
	}
	candidates, err := s.catalog(ctx)
	if err != nil {
		return SearchResult{}, err
	}

	res, err := s.flows.Search(ctx, ai.SearchRequest{Query: req.Query, Candidates: candidates, Limit: req.Limit})
	if err != nil {
		return SearchResult{}, err
	}

	out := SearchResult{Videos: []string{}, Users: []string{}, Fallback: res.Fallback}
	for _, id := range res.IDs {
		switch {
		case strings.HasPrefix(id, videoPrefix):
			out.Videos = append(out.Videos, strings.TrimPrefix(id, videoPrefix))
		case strings.HasPrefix(id, userPrefix):
			out.Users = append(out.Users, strings.TrimPrefix(id, userPrefix))
		}
	}
	return out, nil
}

// Recommend ranks the caller's candidates, or the newest videos when none are given.
func (s *Service) Recommend(ctx context.Context, userID string, req RecommendRequest) (ai.RecommendResult, error) {
	candidates := req.Candidates
	if len(candidates) == 0 {
		var err error
		if candidates, err = s.videos.Candidates(ctx, videoCandidates); err != nil {
			return ai.RecommendResult{}, err
		}
	}
	return s.flows.Recommend(ctx, ai.RecommendRequest{
		UserID:     userID,
		History:    req.History,
		Candidates: candidates,
		Limit:      req.Limit,
	})
}

func (s *Service) Sentiment(ctx context.Context, req ai.SentimentRequest) (ai.SentimentResult, error) {
	return s.flows.Sentiment(ctx, req)
}

func (s *Service) Transcribe(ctx context.Context, audio []byte) (ai.TranscribeResult, error) {
	return s.flows.Transcribe(ctx, audio)
}

// Speak stores synthesised speech and returns its URL. Provider failures
// become a fallback; storage failures are returned.
func (s *Service) Speak(ctx context.Context, userID string, req SpeakRequest) (SpeakResult, error) {
	audio, err := s.flows.Synthesize(ctx, req.Text)
	if err != nil {
		if errors.Is(err, ai.ErrInvalidRequest) {
			return SpeakResult{}, err
		}
		s.log.Warn("speech synthesis failed", zap.Error(err))
		return SpeakResult{Fallback: true}, nil
	}
	obj, err := s.store.Put(ctx, userID, storage.KindSpeech, uuid.NewString()+".ogg", audio)
	if err != nil {
		return SpeakResult{}, err
	}
	return SpeakResult{URL: obj.URL}, nil
}

func (s *Service) catalog(ctx context.Context) ([]ai.Candidate, error) {
	videos, err := s.videos.Candidates(ctx, videoCandidates)
	if err != nil {
		return nil, err
	}
	people, err := s.people.Recent(ctx, userCandidates)
	if err != nil {
		return nil, err
	}

	out := make([]ai.Candidate, 0, len(videos)+len(people))
	for _, v := range videos {
		out = append(out, ai.Candidate{ID: videoPrefix + v.ID, Text: v.Text})
	}
	for _, p := range people {
		text := strings.TrimSpace("@" + p.Handle + " " + p.DisplayName + " " + p.Bio)
		out = append(out, ai.Candidate{ID: userPrefix + p.ID, Text: text})
	}
	return out, nil
}
