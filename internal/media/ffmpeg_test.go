package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shorts-pipeline/internal/models"
)

type recordingRunner struct {
	name string
	args []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.name = name
	r.args = args
	return r.err
}

func TestExtractAudioDerivesPath(t *testing.T) {
	runner := &recordingRunner{}
	tools := &Tools{ffmpegPath: "ffmpeg", runner: runner}

	audioPath, err := tools.ExtractAudio(context.Background(), "/work/job-1/clip.mp4")
	if err != nil {
		t.Fatalf("extract audio: %v", err)
	}
	if audioPath != "/work/job-1/clip.m4a" {
		t.Fatalf("audio path = %q", audioPath)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "-vn") || !strings.Contains(joined, "128k") {
		t.Fatalf("unexpected ffmpeg args: %v", runner.args)
	}
}

func TestExtractAudioToolError(t *testing.T) {
	toolErr := &ToolError{Command: "ffmpeg", ExitCode: 1, Stderr: "x\ncodec not found"}
	tools := &Tools{ffmpegPath: "ffmpeg", runner: &recordingRunner{err: toolErr}}

	_, err := tools.ExtractAudio(context.Background(), "/work/clip.mp4")
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if got := te.Error(); got != "ffmpeg failed (exit=1): codec not found" {
		t.Fatalf("error text = %q", got)
	}
}

func TestExtractFrameArgs(t *testing.T) {
	runner := &recordingRunner{}
	tools := &Tools{ffmpegPath: "ffmpeg", runner: runner}

	if err := tools.ExtractFrame(context.Background(), "/w/short.mp4", 1.5, "/w/frame.png"); err != nil {
		t.Fatalf("extract frame: %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "-ss 1.5") || !strings.Contains(joined, "-frames:v 1") {
		t.Fatalf("unexpected ffmpeg args: %v", runner.args)
	}
}

func TestRenderShortRemovesSubtitlesOnFailure(t *testing.T) {
	work := t.TempDir()
	videoPath := filepath.Join(work, "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("not a video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	// Pointing at a nonexistent binary makes the render fail regardless
	// of whether ffmpeg is installed.
	tools := &Tools{ffmpegPath: filepath.Join(work, "no-such-ffmpeg"), runner: execRunner{}}
	clip := models.Highlight{Start: 0, End: 5}
	segments := []models.Segment{{Start: 0, End: 5, Text: "hi"}}

	err := tools.RenderShort(context.Background(), videoPath, clip, segments, filepath.Join(work, "short.mp4"))
	if err == nil {
		t.Fatal("expected render failure")
	}
	if _, statErr := os.Stat(filepath.Join(work, "subtitles.srt")); !os.IsNotExist(statErr) {
		t.Fatal("temporary subtitle file must be removed on failure")
	}
}
