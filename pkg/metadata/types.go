package metadata

// Metadata is the information extracted from a video link before submission.
// It is cached on the queue row once fetched so a retry never re-extracts.
type Metadata struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	Creator         string `json:"creator"`
	Platform        string `json:"platform"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}
