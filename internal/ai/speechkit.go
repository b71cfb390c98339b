package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	speechKitSTTURL = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"
	speechKitTTSURL = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"
)

// Recognizer turns recorded audio into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechKit talks to Yandex SpeechKit v1 for both directions. Audio is
// OGG/Opus, which is what browser recorders and players handle natively.
type SpeechKit struct {
	apiKey string
	lang   string
	voice  string
	sttURL string
	ttsURL string
	client *http.Client
}

func NewSpeechKit(apiKey, lang, voice string, timeout time.Duration) *SpeechKit {
	return &SpeechKit{
		apiKey: apiKey,
		lang:   lang,
		voice:  voice,
		sttURL: speechKitSTTURL,
		ttsURL: speechKitTTSURL,
		client: &http.Client{Timeout: timeout},
	}
}

type speechKitSTTResponse struct {
	Result string `json:"result"`
	Error  string `json:"error_message"`
}

func (s *SpeechKit) Recognize(ctx context.Context, audio []byte) (string, error) {
	q := url.Values{}
	q.Set("lang", s.lang)
	q.Set("format", "oggopus")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sttURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Api-Key "+s.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speechkit stt request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speechkit stt http %d", resp.StatusCode)
	}

	var parsed speechKitSTTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("speechkit stt decode: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("speechkit stt: %s", parsed.Error)
	}
	return parsed.Result, nil
}

func (s *SpeechKit) Synthesize(ctx context.Context, text string) ([]byte, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", s.lang)
	form.Set("voice", s.voice)
	form.Set("format", "oggopus")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ttsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Api-Key "+s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speechkit tts request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speechkit tts read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speechkit tts http %d: %s", resp.StatusCode, trim(string(audio), 200))
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speechkit tts: empty audio")
	}
	return audio, nil
}
