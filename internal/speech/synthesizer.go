package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrSynthesizerUnavailable = errors.New("speech synthesis service unavailable")

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
	Available() bool
}

type TTSClientConfig struct {
	BaseURL    string
	Voice      string
	Rate       string
	Pitch      string
	OutputDir  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type TTSClient struct {
	baseURL    string
	voice      string
	rate       string
	pitch      string
	outputDir  string
	timeout    time.Duration
	httpClient *http.Client
}

func NewTTSClient(config TTSClientConfig) *TTSClient {
	if strings.TrimSpace(config.Voice) == "" {
		config.Voice = "en-US-AvaNeural"
	}
	if strings.TrimSpace(config.Rate) == "" {
		config.Rate = "+0%"
	}
	if strings.TrimSpace(config.Pitch) == "" {
		config.Pitch = "+0Hz"
	}
	if strings.TrimSpace(config.OutputDir) == "" {
		config.OutputDir = filepath.Join(os.TempDir(), "sarah-speech")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &TTSClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		voice:      config.Voice,
		rate:       config.Rate,
		pitch:      config.Pitch,
		outputDir:  config.OutputDir,
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
	}
}

func (c *TTSClient) Available() bool {
	return c.baseURL != ""
}

// Synthesize converts the reply text to speech and writes the audio to a
// uniquely named file, returning its path. Markdown and emojis are stripped
// before synthesis.
func (c *TTSClient) Synthesize(ctx context.Context, text string) (string, error) {
	if !c.Available() {
		return "", ErrSynthesizerUnavailable
	}

	clean := CleanText(text)
	if clean == "" {
		return "", errors.New("nothing to synthesize after cleaning")
	}

	payload, err := json.Marshal(map[string]string{
		"text":  clean,
		"voice": c.voice,
		"rate":  c.rate,
		"pitch": c.pitch,
	})
	if err != nil {
		return "", fmt.Errorf("marshal tts payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/synthesize",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("create tts request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("tts transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 700))
		return "", fmt.Errorf("tts status %d: %s", httpResponse.StatusCode, strings.TrimSpace(string(raw)))
	}

	audio, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("read tts body: %w", err)
	}
	if len(audio) == 0 {
		return "", errors.New("tts returned empty audio")
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outputPath := filepath.Join(c.outputDir, fmt.Sprintf("speech_%s.mp3", uuid.NewString()))
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return outputPath, nil
}

var (
	boldPattern      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underlinePattern = regexp.MustCompile(`__(.*?)__`)
	italicPattern    = regexp.MustCompile(`\*(.*?)\*`)
	emphasisPattern  = regexp.MustCompile(`_(.*?)_`)
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	inlineCode       = regexp.MustCompile("`(.*?)`")
	headerPattern    = regexp.MustCompile(`#+\s`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
	nonASCIIPattern  = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// CleanText strips markdown formatting, links and emojis so the synthesized
// voice does not read them aloud.
func CleanText(text string) string {
	text = codeBlockPattern.ReplaceAllString(text, "")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = underlinePattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = emphasisPattern.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = nonASCIIPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
