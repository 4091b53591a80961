// Package media classifies project media URLs and rewrites sharing links
// into URLs that can be embedded directly.
package media

import (
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

var (
	driveFilePattern  = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveQueryPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	imageExtPattern   = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)$`)

	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/watch\?.*v=([a-zA-Z0-9_-]{11})`),
	}
)

func Classify(raw string) Kind {
	if IsYouTubeURL(raw) {
		return KindVideo
	}
	if IsGoogleDriveURL(raw) || IsImgBBURL(raw) || imageExtPattern.MatchString(raw) {
		return KindImage
	}
	return KindUnknown
}

// DisplayURL returns the URL to render for raw. Google Drive sharing links
// are rewritten to the direct-view form; everything else is returned as is.
func DisplayURL(raw string) string {
	if !IsGoogleDriveURL(raw) {
		return raw
	}
	if id := googleDriveFileID(raw); id != "" {
		return "https://drive.google.com/uc?export=view&id=" + id
	}
	return raw
}

func IsGoogleDriveURL(raw string) bool {
	return strings.Contains(raw, "drive.google.com") &&
		(strings.Contains(raw, "/file/") || strings.Contains(raw, "?id="))
}

func IsImgBBURL(raw string) bool {
	return strings.Contains(raw, "ibb.co")
}

func IsYouTubeURL(raw string) bool {
	return strings.Contains(raw, "youtube.com") || strings.Contains(raw, "youtu.be")
}

func YouTubeID(raw string) (string, bool) {
	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func YouTubeEmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// IsValidURL reports whether raw is an absolute http or https URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func googleDriveFileID(raw string) string {
	if m := driveFilePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := driveQueryPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
