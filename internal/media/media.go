package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"plantcam/internal/config"
	"plantcam/internal/services"
)

// Name validation is strict: a single filename component, no separators, no
// traversal. Anything served over HTTP or deleted on request goes through it.
var (
	videoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+\.mp4$`)
	imageNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+\.jpg$`)
)

// Merger concatenates existing videos into one artifact.
type Merger interface {
	MergeVideos(ctx context.Context, inputs []string, output string) error
}

// Item describes one file in the catalog.
type Item struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Catalog lists, resolves and deletes the media files the daemon produced.
type Catalog struct {
	cfg    *config.Config
	merger Merger
}

// NewCatalog constructs a catalog over the configured media directories.
func NewCatalog(cfg *config.Config, merger Merger) *Catalog {
	return &Catalog{cfg: cfg, merger: merger}
}

// ValidVideoName reports whether name is a safe video filename. In-flight
// encoder outputs (.tmp.mp4) are not catalog members.
func ValidVideoName(name string) bool {
	return videoNamePattern.MatchString(name) &&
		!strings.Contains(name, "..") &&
		!strings.HasSuffix(name, ".tmp.mp4")
}

// ValidImageName reports whether name is a safe image filename.
func ValidImageName(name string) bool {
	return imageNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// ListVideos returns the video artifacts, newest first.
func (c *Catalog) ListVideos() ([]Item, error) {
	return listDir(c.cfg.VideosDir(), ValidVideoName)
}

// ListImages returns the session frames currently on disk, newest first.
func (c *Catalog) ListImages() ([]Item, error) {
	return listDir(c.cfg.FramesDir(), ValidImageName)
}

// Video resolves a validated video name to its catalog entry.
func (c *Catalog) Video(name string) (Item, error) {
	if !ValidVideoName(name) {
		return Item{}, services.Wrap(services.ErrValidation, "media", "lookup", fmt.Sprintf("invalid video name %q", name), nil)
	}
	path := filepath.Join(c.cfg.VideosDir(), name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Item{}, services.Wrap(services.ErrNotFound, "media", "lookup", fmt.Sprintf("video %q not found", name), nil)
		}
		return Item{}, services.Wrap(services.ErrExternalTool, "media", "lookup", "stat video", err)
	}
	return Item{Name: name, Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// DeleteVideo removes a video artifact by name.
func (c *Catalog) DeleteVideo(name string) error {
	item, err := c.Video(name)
	if err != nil {
		return err
	}
	if err := os.Remove(item.Path); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "delete", "remove video", err)
	}
	return nil
}

// MergeAll merges every video, oldest to newest, into a single artifact named
// after the covered range, deleting the sources once the merge is verified —
// the same retention rule a session encode follows.
func (c *Catalog) MergeAll(ctx context.Context) (Item, error) {
	videos, err := c.ListVideos()
	if err != nil {
		return Item{}, err
	}
	if len(videos) < 2 {
		return Item{}, services.Wrap(services.ErrValidation, "media", "merge", "need at least two videos to merge", nil)
	}

	// Timestamped names mean lexical order is chronological.
	sort.Slice(videos, func(i, j int) bool { return videos[i].Name < videos[j].Name })

	inputs := make([]string, 0, len(videos))
	for _, video := range videos {
		inputs = append(inputs, video.Path)
	}
	outputName := mergedName(videos[0].Name, videos[len(videos)-1].Name)
	outputPath := filepath.Join(c.cfg.VideosDir(), outputName)

	if err := c.merger.MergeVideos(ctx, inputs, outputPath); err != nil {
		return Item{}, err
	}
	for _, video := range videos {
		if err := os.Remove(video.Path); err != nil && !os.IsNotExist(err) {
			return Item{}, services.Wrap(services.ErrExternalTool, "media", "merge", "remove merged source", err)
		}
	}
	return c.Video(outputName)
}

var videoRangePattern = regexp.MustCompile(`^video_(\d{6}_\d{6})_(\d{6}_\d{6})\.mp4$`)

// mergedName derives merged_<firstStart>_<lastEnd>.mp4 from the boundary
// source names, falling back to the full stems when they do not follow the
// video_<start>_<end> convention.
func mergedName(first, last string) string {
	start := strings.TrimSuffix(first, ".mp4")
	if match := videoRangePattern.FindStringSubmatch(first); match != nil {
		start = match[1]
	}
	end := strings.TrimSuffix(last, ".mp4")
	if match := videoRangePattern.FindStringSubmatch(last); match != nil {
		end = match[2]
	}
	return fmt.Sprintf("merged_%s_%s.mp4", start, end)
}

func listDir(dir string, valid func(string) bool) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrExternalTool, "media", "list", "read directory", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !valid(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name > items[j].Name })
	return items, nil
}
