package storage

import (
	"os"
	"path/filepath"
	"strings"

	"ytcomments/internal/youtube"
)

// CommentMeta is the per-document metadata carried alongside each comment
// through the modeling pipeline. The comment slice and the meta slice are
// always the same length and index-correspondent.
type CommentMeta struct {
	Channel    string `json:"channel"`
	VideoID    string `json:"video_id"`
	VideoTitle string `json:"video_title"`
	Author     string `json:"author"`
	Likes      int    `json:"likes"`
	Timestamp  int64  `json:"timestamp"`
}

// LoadComments flattens every stored comment of the given channels into a
// corpus. Channels without stored videos are skipped with a warning rather
// than failing the whole load.
func (s *FileStore) LoadComments(channels []string) ([]string, []CommentMeta, error) {
	var comments []string
	var meta []CommentMeta

	for _, channel := range channels {
		videosDir := s.videosDir(channel)
		entries, err := os.ReadDir(videosDir)
		if err != nil {
			if os.IsNotExist(err) {
				s.log.Warn("channel has no stored videos, skipping", "channel", channel)
				continue
			}
			return nil, nil, err
		}

		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			var vc youtube.VideoComments
			if err := readJSON(filepath.Join(videosDir, e.Name()), &vc); err != nil {
				s.log.Warn("skipping unreadable video artifact", "channel", channel, "file", e.Name(), "err", err)
				continue
			}
			for _, c := range vc.Comments {
				comments = append(comments, c.Text)
				meta = append(meta, CommentMeta{
					Channel:    channel,
					VideoID:    vc.VideoID,
					VideoTitle: vc.Title,
					Author:     c.Author,
					Likes:      c.Likes,
					Timestamp:  c.Timestamp,
				})
			}
		}
	}
	return comments, meta, nil
}
