package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/models"
	"shorts-pipeline/internal/storage"
)

// Expected negative outcomes: the source video simply has nothing to clip.
// Their text becomes the job's error field verbatim.
var (
	ErrNoSpeech = errors.New("No speech detected in video")
	ErrNoHooks  = errors.New("No hook moments found")
)

const originalsFolderName = "original files"

// RemoteFiles is the storage capability set the pipeline needs.
type RemoteFiles interface {
	Download(ctx context.Context, key, destPath string) error
	Upload(ctx context.Context, localPath, folderRef, name string) (string, error)
	Move(ctx context.Context, key, folderRef string) error
	EnsureFolder(ctx context.Context, parentRef, name string) (string, error)
}

// SpeechAnalyzer turns audio into transcript segments and segments into
// ranked highlight candidates.
type SpeechAnalyzer interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.Segment, error)
	SelectHighlights(ctx context.Context, segments []models.Segment) ([]models.Highlight, error)
}

// MediaTools is the external transcoder capability set.
type MediaTools interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	RenderShort(ctx context.Context, videoPath string, clip models.Highlight, segments []models.Segment, outPath string) error
	ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outPath string) error
}

// Pipeline runs one job from source video to published short. Steps are
// strictly sequential: each step's output is the next step's only input.
type Pipeline struct {
	cfg   config.Config
	files RemoteFiles
	ai    SpeechAnalyzer
	media MediaTools
}

func NewPipeline(cfg config.Config, files RemoteFiles, ai SpeechAnalyzer, media MediaTools) *Pipeline {
	return &Pipeline{cfg: cfg, files: files, ai: ai, media: media}
}

// Process downloads the job's source video into a private workspace,
// transcribes it, renders the first highlight candidate as a subtitled
// 9:16 short, moves the original aside, and uploads the short. The
// workspace is removed on every exit path before the error (if any) is
// returned; the caller owns persisting the terminal status.
func (p *Pipeline) Process(ctx context.Context, job models.Job) error {
	work := filepath.Join(p.cfg.WorkDir, job.ID)
	if err := os.MkdirAll(work, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			log.Printf("job %s: cleanup workspace: %v", job.ID, err)
		}
	}()

	name := job.SourceFileName
	if name == "" {
		name = "video.mp4"
	}
	videoPath := filepath.Join(work, name)

	if err := p.step(ctx, p.cfg.DownloadTimeout, func(ctx context.Context) error {
		return p.files.Download(ctx, job.SourceFileRef, videoPath)
	}); err != nil {
		return err
	}

	var audioPath string
	if err := p.step(ctx, p.cfg.RenderTimeout, func(ctx context.Context) error {
		var err error
		audioPath, err = p.media.ExtractAudio(ctx, videoPath)
		return err
	}); err != nil {
		return err
	}

	var segments []models.Segment
	if err := p.step(ctx, p.cfg.TranscribeTimeout, func(ctx context.Context) error {
		var err error
		segments, err = p.ai.Transcribe(ctx, audioPath)
		return err
	}); err != nil {
		return err
	}
	// The audio artifact is never needed again.
	_ = os.Remove(audioPath)

	if len(segments) == 0 {
		return ErrNoSpeech
	}

	var clips []models.Highlight
	if err := p.step(ctx, p.cfg.HighlightTimeout, func(ctx context.Context) error {
		var err error
		clips, err = p.ai.SelectHighlights(ctx, segments)
		return err
	}); err != nil {
		return err
	}
	if len(clips) == 0 {
		return ErrNoHooks
	}

	// The selector returns candidates best-first; only the first becomes
	// a short.
	clip := clips[0]
	shortPath := filepath.Join(work, "short.mp4")
	if err := p.step(ctx, p.cfg.RenderTimeout, func(ctx context.Context) error {
		return p.media.RenderShort(ctx, videoPath, clip, segments, shortPath)
	}); err != nil {
		return err
	}

	return p.publish(ctx, job, shortPath)
}

// publish moves the processed source out of the watched folder and uploads
// the rendered short (plus a best-effort thumbnail) into a folder named
// after the source.
func (p *Pipeline) publish(ctx context.Context, job models.Job, shortPath string) error {
	return p.step(ctx, p.cfg.UploadTimeout, func(ctx context.Context) error {
		originalsRef, err := p.files.EnsureFolder(ctx, p.cfg.WatchedPrefix, originalsFolderName)
		if err != nil {
			return err
		}
		// Moving the source marks it processed and keeps the enqueue
		// scan from picking it up again.
		if err := p.files.Move(ctx, job.SourceFileRef, originalsRef); err != nil {
			return err
		}

		base := storage.SanitizeFolderName(job.SourceFileName)
		outRef, err := p.files.EnsureFolder(ctx, p.cfg.WatchedPrefix, base)
		if err != nil {
			return err
		}
		if _, err := p.files.Upload(ctx, shortPath, outRef, base+"_short.mp4"); err != nil {
			return err
		}

		if thumbPath, err := p.renderThumbnail(ctx, shortPath); err != nil {
			log.Printf("job %s: thumbnail skipped: %v", job.ID, err)
		} else if _, err := p.files.Upload(ctx, thumbPath, outRef, base+"_thumb.jpg"); err != nil {
			log.Printf("job %s: thumbnail upload skipped: %v", job.ID, err)
		}
		return nil
	})
}

// renderThumbnail grabs a frame one second into the short and downscales
// it to a 720-wide JPEG cover image.
func (p *Pipeline) renderThumbnail(ctx context.Context, shortPath string) (string, error) {
	work := filepath.Dir(shortPath)
	framePath := filepath.Join(work, "frame.png")
	if err := p.media.ExtractFrame(ctx, shortPath, 1.0, framePath); err != nil {
		return "", err
	}

	img, err := imaging.Open(framePath)
	if err != nil {
		return "", fmt.Errorf("open frame: %w", err)
	}
	thumb := imaging.Resize(img, 720, 0, imaging.Lanczos)
	thumbPath := filepath.Join(work, "thumb.jpg")
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return thumbPath, nil
}

// step runs fn under a deadline so a hung external call fails the job
// instead of stalling the worker forever.
func (p *Pipeline) step(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
