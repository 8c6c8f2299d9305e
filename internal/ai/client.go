package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/models"
)

const highlightSystemPrompt = "You analyze Slovak political interview transcripts. " +
	"Find the most viral, hook-worthy moments for YouTube Shorts. " +
	"Return a JSON array of clips: [{start, end, reason}]. start/end in seconds. " +
	"Pick 1-3 clips, 15-60 sec each."

// Client wraps the OpenAI API for speech recognition and highlight scoring.
type Client struct {
	api             *openai.Client
	transcribeModel string
	highlightModel  string
	language        string
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		api:             openai.NewClient(cfg.OpenAIAPIKey),
		transcribeModel: cfg.TranscribeModel,
		highlightModel:  cfg.HighlightModel,
		language:        cfg.Language,
	}
}

// Transcribe runs speech recognition over an audio file and returns the
// recognized segments in the order the recognizer produced them. An empty
// result is not an error here; the pipeline decides what that means.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]models.Segment, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: audioPath,
		Language: c.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	segments := make([]models.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, models.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return segments, nil
}

// SelectHighlights asks the scoring model for 1-3 candidate clip ranges.
// An empty result means no usable candidates, which is a valid outcome.
func (c *Client) SelectHighlights(ctx context.Context, segments []models.Segment) ([]models.Highlight, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.highlightModel,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: highlightSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Analyze:\n\n" + formatTranscript(segments)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select highlights: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return parseHighlights([]byte(resp.Choices[0].Message.Content)), nil
}

// formatTranscript labels every segment with its integer-second start time.
func formatTranscript(segments []models.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("[%ds] %s", int(s.Start), s.Text))
	}
	return strings.Join(lines, "\n")
}
