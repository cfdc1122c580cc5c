package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"plantcam/internal/config"
	"plantcam/internal/media"
	"plantcam/internal/services"
)

type stubMerger struct {
	inputs []string
	output string
	err    error
}

func (s *stubMerger) MergeVideos(_ context.Context, inputs []string, output string) error {
	s.inputs = append([]string(nil), inputs...)
	s.output = output
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(output, make([]byte, 1024), 0o644)
}

func testCatalog(t *testing.T, merger media.Merger) (*media.Catalog, *config.Config) {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.MediaDir = filepath.Join(dir, "media")
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return media.NewCatalog(&cfg, merger), &cfg
}

func seedVideo(t *testing.T, cfg *config.Config, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.VideosDir(), name), make([]byte, 512), 0o644); err != nil {
		t.Fatalf("seed video: %v", err)
	}
}

func TestValidVideoNameRejectsTraversal(t *testing.T) {
	cases := map[string]bool{
		"video_250101_120000_250101_130000.mp4": true,
		"merged_250101_120000_250102_090000.mp4": true,
		"../etc/passwd":     false,
		"..%2fescape.mp4":   false,
		"with space.mp4":    false,
		"subdir/video.mp4":  false,
		"video.mkv":         false,
		"":                  false,
		"plain-archive.mp4": true,
		"video_250101_120000_250101_130000.tmp.mp4": false,
	}
	for name, want := range cases {
		if got := media.ValidVideoName(name); got != want {
			t.Errorf("ValidVideoName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestListVideosNewestFirstIgnoringStrays(t *testing.T) {
	catalog, cfg := testCatalog(t, &stubMerger{})
	seedVideo(t, cfg, "video_250101_120000_250101_130000.mp4")
	seedVideo(t, cfg, "video_250102_120000_250102_130000.mp4")
	if err := os.WriteFile(filepath.Join(cfg.VideosDir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed stray: %v", err)
	}

	videos, err := catalog.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].Name != "video_250102_120000_250102_130000.mp4" {
		t.Fatalf("expected newest first, got %q", videos[0].Name)
	}
}

func TestVideoLookupErrors(t *testing.T) {
	catalog, _ := testCatalog(t, &stubMerger{})

	if _, err := catalog.Video("../escape.mp4"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := catalog.Video("video_250101_120000_250101_130000.mp4"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeleteVideoRemovesFile(t *testing.T) {
	catalog, cfg := testCatalog(t, &stubMerger{})
	seedVideo(t, cfg, "video_250101_120000_250101_130000.mp4")

	if err := catalog.DeleteVideo("video_250101_120000_250101_130000.mp4"); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.VideosDir(), "video_250101_120000_250101_130000.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected video removed, stat err=%v", err)
	}
	if err := catalog.DeleteVideo("video_250101_120000_250101_130000.mp4"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}

func TestMergeAllCombinesChronologicallyAndDeletesSources(t *testing.T) {
	merger := &stubMerger{}
	catalog, cfg := testCatalog(t, merger)
	// Seeded out of order on purpose.
	seedVideo(t, cfg, "video_250102_120000_250102_130000.mp4")
	seedVideo(t, cfg, "video_250101_120000_250101_130000.mp4")

	merged, err := catalog.MergeAll(context.Background())
	if err != nil {
		t.Fatalf("MergeAll failed: %v", err)
	}
	if merged.Name != "merged_250101_120000_250102_130000.mp4" {
		t.Fatalf("unexpected merged name %q", merged.Name)
	}
	if len(merger.inputs) != 2 || filepath.Base(merger.inputs[0]) != "video_250101_120000_250101_130000.mp4" {
		t.Fatalf("expected chronological merge order, got %v", merger.inputs)
	}

	videos, err := catalog.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(videos) != 1 || videos[0].Name != merged.Name {
		t.Fatalf("expected only the merged artifact to remain, got %v", videos)
	}
}

func TestMergeAllRequiresTwoVideos(t *testing.T) {
	catalog, cfg := testCatalog(t, &stubMerger{})
	seedVideo(t, cfg, "video_250101_120000_250101_130000.mp4")

	if _, err := catalog.MergeAll(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for single video, got %v", err)
	}
}

func TestMergeAllFailureKeepsSources(t *testing.T) {
	merger := &stubMerger{err: errors.New("exit status 1")}
	catalog, cfg := testCatalog(t, merger)
	seedVideo(t, cfg, "video_250101_120000_250101_130000.mp4")
	seedVideo(t, cfg, "video_250102_120000_250102_130000.mp4")

	if _, err := catalog.MergeAll(context.Background()); err == nil {
		t.Fatal("expected merge failure")
	}
	videos, err := catalog.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected sources retained after failed merge, got %d", len(videos))
	}
}
