package capture

import "github.com/tipline/videoreports/internal/report"

// FileName derives the artifact name for one capture. The video id keeps
// the name human-readable; the unique id makes repeat reports of the
// same video collision-free.
func FileName(videoURL, uniqueID string) string {
	if id, ok := report.VideoID(videoURL); ok {
		return id + "-" + uniqueID + ".png"
	}
	return uniqueID + ".png"
}
