package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ytcomments/internal/youtube"
)

// FileStore persists extraction artifacts on disk:
//
//	<root>/
//	  <folder>/
//	    info.json            channel metadata + running stats
//	    videos/
//	      <video_id>.json    one artifact per video
//
// Writes are serialized by an internal lock; a video artifact and the
// channel info refresh that follows it are issued by a single worker loop,
// so readers never see a torn pair.
type FileStore struct {
	log  *slog.Logger
	root string
	mu   sync.Mutex
}

func NewFileStore(log *slog.Logger, root string) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", root, err)
	}
	return &FileStore{log: log, root: root}, nil
}

// ChannelStats is the running aggregate kept in a channel's info.json.
type ChannelStats struct {
	TotalVideos     int `json:"total_videos"`
	VideosExtracted int `json:"videos_extracted"`
	TotalComments   int `json:"total_comments"`
}

type channelInfoFile struct {
	youtube.ChannelInfo
	ChannelStats
	LastUpdated string `json:"last_updated"`
}

// SafeFolderName derives the on-disk folder for a channel. Handles are kept
// as-is; anything else is reduced to filesystem-safe characters.
func SafeFolderName(input, channelName string) string {
	if strings.HasPrefix(input, "@") {
		return input
	}
	var b strings.Builder
	for _, r := range channelName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '@':
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		name = "channel"
	}
	return name
}

func (s *FileStore) videosDir(folder string) string {
	return filepath.Join(s.root, folder, "videos")
}

// DownloadedIDs returns the set of video ids already persisted for a channel.
func (s *FileStore) DownloadedIDs(folder string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	entries, err := os.ReadDir(s.videosDir(folder))
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			ids[name] = struct{}{}
		}
	}
	return ids, nil
}

// ExistingComments sums the comment counts of all persisted artifacts.
func (s *FileStore) ExistingComments(folder string) (int, error) {
	entries, err := os.ReadDir(s.videosDir(folder))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	total := 0
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var vc youtube.VideoComments
		if err := readJSON(filepath.Join(s.videosDir(folder), e.Name()), &vc); err != nil {
			s.log.Warn("skipping unreadable video artifact", "folder", folder, "file", e.Name(), "err", err)
			continue
		}
		total += vc.CommentCount
	}
	return total, nil
}

// SaveVideo writes one video's artifact.
func (s *FileStore) SaveVideo(folder string, vc youtube.VideoComments) error {
	if vc.VideoID == "" {
		return fmt.Errorf("video artifact without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.videosDir(folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, vc.VideoID+".json"), vc)
}

// SaveChannelInfo writes/refreshes a channel's info.json with current stats.
func (s *FileStore) SaveChannelInfo(folder string, info youtube.ChannelInfo, stats ChannelStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file := channelInfoFile{
		ChannelInfo:  info,
		ChannelStats: stats,
		LastUpdated:  time.Now().Format(time.RFC3339),
	}
	return writeJSON(filepath.Join(dir, "info.json"), file)
}

// ChannelSummary is one row of the stored-channels listing.
type ChannelSummary struct {
	Folder          string `json:"folder"`
	ChannelName     string `json:"channel_name"`
	ChannelID       string `json:"channel_id"`
	Description     string `json:"description"`
	SubscriberCount *int64 `json:"subscriber_count"`
	VideoCount      int    `json:"video_count"`
	TotalAvailable  int    `json:"total_videos_available"`
	CommentCount    int    `json:"comment_count"`
	LastUpdated     string `json:"last_updated"`
	SizeBytes       int64  `json:"size_bytes"`
}

// ListChannels returns a summary per stored channel, newest first.
func (s *FileStore) ListChannels() ([]ChannelSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var channels []ChannelSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folder := e.Name()
		summary := ChannelSummary{Folder: folder, ChannelName: folder}

		var info channelInfoFile
		if err := readJSON(filepath.Join(s.root, folder, "info.json"), &info); err == nil {
			if info.Name != "" {
				summary.ChannelName = info.Name
			}
			summary.ChannelID = info.ID
			summary.Description = info.Description
			summary.SubscriberCount = info.SubscriberCount
			summary.VideoCount = info.VideosExtracted
			summary.TotalAvailable = info.TotalVideos
			summary.CommentCount = info.TotalComments
			summary.LastUpdated = info.LastUpdated
		}
		summary.SizeBytes = s.folderSize(folder)
		channels = append(channels, summary)
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].LastUpdated > channels[j].LastUpdated
	})
	return channels, nil
}

func (s *FileStore) folderSize(folder string) int64 {
	var size int64
	if fi, err := os.Stat(filepath.Join(s.root, folder, "info.json")); err == nil {
		size += fi.Size()
	}
	entries, err := os.ReadDir(s.videosDir(folder))
	if err != nil {
		return size
	}
	for _, e := range entries {
		if fi, err := e.Info(); err == nil {
			size += fi.Size()
		}
	}
	return size
}

// ChannelDetail is the full stored content of one channel.
type ChannelDetail struct {
	ChannelName     string                  `json:"channel_name"`
	ChannelID       string                  `json:"channel_id"`
	Description     string                  `json:"description"`
	SubscriberCount *int64                  `json:"subscriber_count"`
	LastUpdated     string                  `json:"last_updated"`
	TotalVideos     int                     `json:"total_videos"`
	TotalComments   int                     `json:"total_comments"`
	Videos          []youtube.VideoComments `json:"videos"`
}

// ChannelDetail loads a channel's info and every stored video artifact.
func (s *FileStore) ChannelDetail(folder string) (*ChannelDetail, error) {
	if _, err := os.Stat(filepath.Join(s.root, folder)); err != nil {
		return nil, err
	}

	detail := &ChannelDetail{ChannelName: folder, Videos: []youtube.VideoComments{}}
	var info channelInfoFile
	if err := readJSON(filepath.Join(s.root, folder, "info.json"), &info); err == nil {
		if info.Name != "" {
			detail.ChannelName = info.Name
		}
		detail.ChannelID = info.ID
		detail.Description = info.Description
		detail.SubscriberCount = info.SubscriberCount
		detail.LastUpdated = info.LastUpdated
	}

	entries, err := os.ReadDir(s.videosDir(folder))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var vc youtube.VideoComments
		if err := readJSON(filepath.Join(s.videosDir(folder), e.Name()), &vc); err != nil {
			s.log.Warn("skipping unreadable video artifact", "folder", folder, "file", e.Name(), "err", err)
			continue
		}
		detail.Videos = append(detail.Videos, vc)
		detail.TotalComments += vc.CommentCount
	}
	detail.TotalVideos = len(detail.Videos)
	return detail, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
