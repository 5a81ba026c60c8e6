package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// ErrNoSpeech is returned when transcription produced no text.
var ErrNoSpeech = errors.New("no speech detected")

// VoiceClient talks to the generative-AI voice endpoints.
type VoiceClient struct {
	rest
}

type queryAIRequest struct {
	Prompt               string `json:"prompt"`
	ConversationHistoric string `json:"conversation_historic"`
}

// QueryAIResponse is the assistant reply plus the history to send next turn.
type QueryAIResponse struct {
	Response       string `json:"response"`
	UpdatedHistory string `json:"updatedHistory"`
}

// SpeechToText uploads one recorded utterance and returns its transcript.
func (c *VoiceClient) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("Speech-to-text failed: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("Speech-to-text failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Speech-to-text failed: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/voice/speech-to-text", nil, &buf, w.FormDataContentType())
	if err != nil {
		return "", fmt.Errorf("Speech-to-text failed: %w", err)
	}
	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := c.do(req, "Speech-to-text", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Transcript) == "" {
		return "", ErrNoSpeech
	}
	return out.Transcript, nil
}

func (c *VoiceClient) QueryAI(ctx context.Context, prompt, history string) (*QueryAIResponse, error) {
	var out QueryAIResponse
	err := c.doJSON(ctx, "AI query", http.MethodPost, "/voice/query-ai", nil,
		queryAIRequest{Prompt: prompt, ConversationHistoric: history}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TextToSpeech returns the synthesized reply as playable audio bytes.
func (c *VoiceClient) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	err := c.doJSON(ctx, "Text-to-speech", http.MethodPost, "/voice/text-to-speech", nil,
		struct {
			Text string `json:"text"`
		}{text}, &audio)
	if err != nil {
		return nil, err
	}
	return audio, nil
}
