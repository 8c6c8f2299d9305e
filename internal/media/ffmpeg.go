package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shorts-pipeline/internal/models"
)

// ToolError reports a failed external transcoder invocation.
type ToolError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed (exit=%d)", e.Command, e.ExitCode)
	if tail := stderrTail(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ToolError{Command: name, ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Tools invokes ffmpeg for the stateless media transformations.
type Tools struct {
	ffmpegPath string
	runner     commandRunner
}

func NewTools() *Tools {
	return &Tools{ffmpegPath: "ffmpeg", runner: execRunner{}}
}

// ExtractAudio derives an aac audio file beside the input video. The input
// is left in place.
func (t *Tools) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".m4a"
	err := t.runner.Run(ctx, t.ffmpegPath,
		"-y", "-i", videoPath,
		"-vn", "-c:a", "aac", "-b:a", "128k",
		audioPath,
	)
	if err != nil {
		return "", err
	}
	return audioPath, nil
}

// RenderShort trims clip out of the video, crops it to 9:16, and burns in
// subtitles built from the segments overlapping the clip. The temporary
// subtitle file lives in the video's directory and is removed on every
// path.
func (t *Tools) RenderShort(ctx context.Context, videoPath string, clip models.Highlight, segments []models.Segment, outPath string) error {
	workDir := filepath.Dir(videoPath)
	srtPath := filepath.Join(workDir, "subtitles.srt")
	if err := os.WriteFile(srtPath, []byte(BuildSRT(segments, clip.Start, clip.End)), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	defer os.Remove(srtPath)

	filter := fmt.Sprintf(
		"[0:v]trim=start=%g:end=%g,setpts=PTS-STARTPTS,"+
			"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,"+
			"subtitles=subtitles.srt[v];"+
			"[0:a]atrim=start=%g:end=%g,asetpts=PTS-STARTPTS[a]",
		clip.Start, clip.End, clip.Start, clip.End,
	)

	// The subtitles filter resolves its path relative to the process
	// working directory, so run ffmpeg from the workspace.
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y", "-i", videoPath,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-c:a", "aac",
		"-shortest", outPath,
	)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ToolError{Command: t.ffmpegPath, ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// ExtractFrame grabs a single frame at the given offset into the video.
func (t *Tools) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outPath string) error {
	return t.runner.Run(ctx, t.ffmpegPath,
		"-y", "-ss", fmt.Sprintf("%g", atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		outPath,
	)
}

func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
