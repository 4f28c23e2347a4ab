package youtube

// Video is one entry of a channel's upload list.
type Video struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ChannelInfo is the metadata yt-dlp reports for a channel page.
type ChannelInfo struct {
	Name            string `json:"channel_name"`
	ID              string `json:"channel_id"`
	URL             string `json:"channel_url"`
	Description     string `json:"description"`
	SubscriberCount *int64 `json:"subscriber_count"`
	OriginalInput   string `json:"original_input"`
}

// Comment is a single comment as extracted from a video.
type Comment struct {
	Author    string `json:"author"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	Likes     int    `json:"likes"`
	Timestamp int64  `json:"timestamp"`
	Parent    string `json:"parent"`
	IsReply   bool   `json:"is_reply"`
}

// VideoComments is the durable artifact produced for one video.
type VideoComments struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	CommentCount int       `json:"comment_count"`
	Comments     []Comment `json:"comments"`
}
