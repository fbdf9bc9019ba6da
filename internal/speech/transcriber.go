// Package speech wraps the companion audio services: Whisper transcription
// for inbound voice notes and text-to-speech for Sarah's spoken replies.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var ErrTranscriberUnavailable = errors.New("transcription service unavailable")

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Available() bool
}

type WhisperClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type WhisperClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewWhisperClient(config WhisperClientConfig) *WhisperClient {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &WhisperClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
	}
}

func (c *WhisperClient) Available() bool {
	return c.baseURL != ""
}

// Transcribe sends the raw audio as a multipart upload and returns the
// recognized text.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !c.Available() {
		return "", ErrTranscriberUnavailable
	}
	if len(audio) == 0 {
		return "", errors.New("audio payload is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="audio.ogg"`)
	header.Set("Content-Type", "audio/ogg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/transcribe",
		&body,
	)
	if err != nil {
		return "", fmt.Errorf("create whisper request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", writer.FormDataContentType())

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("whisper transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 700))
		return "", fmt.Errorf("whisper status %d: %s", httpResponse.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(httpResponse.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}

	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return "", errors.New("whisper returned empty transcription")
	}
	return text, nil
}
