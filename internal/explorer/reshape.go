// Package explorer reshapes Graph drive items into the view model the
// media-player frontend consumes.
package explorer

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hul1hu/mediadrive/internal/graph"
)

// Media types assigned to file entries.
const (
	MediaVideo = "video"
	MediaPhoto = "photo"
	MediaAudio = "audio"
	MediaOther = "other"
)

var (
	videoExtensions = []string{".mp4", ".mkv", ".avi", ".webm", ".mov", ".wmv", ".flv", ".m4v", ".3gp", ".ogv"}
	photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".svg"}
	audioExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac", ".wma", ".opus", ".aiff", ".alac"}
)

// streamMimeTypes maps filename extensions to the Content-Type served on the
// stream endpoint. Upstream-reported MIME types are sometimes generic or
// missing, which breaks <video>/<audio> type sniffing in browsers.
var streamMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
}

// Entry is a single folder or file in a listing.
type Entry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"` // "folder" or "file"
	Size         int64   `json:"size"`
	Modified     string  `json:"modified,omitempty"`
	Created      string  `json:"created,omitempty"`
	MimeType     string  `json:"mime_type,omitempty"`
	FullPath     string  `json:"full_path"`
	IsMedia      bool    `json:"is_media"`
	MediaType    string  `json:"media_type,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	DownloadURL  string  `json:"download_url,omitempty"`
}

// Listing is the browse response shape.
type Listing struct {
	CurrentFolder string  `json:"current_folder"`
	Folders       []Entry `json:"folders"`
	Files         []Entry `json:"files"`
	TotalSize     int64   `json:"total_size"`
	FolderCount   int     `json:"folder_count"`
	FileCount     int     `json:"file_count"`
	MediaCount    int     `json:"media_count"`
}

// SearchResult is the search response shape: folders first, then files.
type SearchResult struct {
	Results []Entry `json:"results"`
	Total   int     `json:"total"`
}

// MediaType classifies a file by extension first, MIME prefix second.
// Classification is a pure function of (name, mimeType): the same input
// always yields the same answer.
func MediaType(name, mimeType string) string {
	lower := strings.ToLower(name)
	switch {
	case hasAnySuffix(lower, videoExtensions) || strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	case hasAnySuffix(lower, photoExtensions) || strings.HasPrefix(mimeType, "image/"):
		return MediaPhoto
	case hasAnySuffix(lower, audioExtensions) || strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio
	default:
		return MediaOther
	}
}

// IsMedia reports whether the file classifies as video, photo or audio.
func IsMedia(name, mimeType string) bool {
	return MediaType(name, mimeType) != MediaOther
}

// IsPlayable reports whether the file is a video or audio file by extension.
// Used by the legacy flat-list endpoints, which exclude photos.
func IsPlayable(name string) bool {
	lower := strings.ToLower(name)
	return hasAnySuffix(lower, videoExtensions) || hasAnySuffix(lower, audioExtensions)
}

// StreamContentType resolves the Content-Type for the stream endpoint:
// fixed extension table, then the upstream MIME, then octet-stream.
func StreamContentType(name, upstreamMime string) string {
	lower := strings.ToLower(name)
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		if ct, ok := streamMimeTypes[lower[idx:]]; ok {
			return ct
		}
	}
	if upstreamMime != "" {
		return upstreamMime
	}
	return "application/octet-stream"
}

// ThumbnailURL picks the largest available variant from the item's first
// thumbnail set, or nil when none exist.
func ThumbnailURL(item *graph.Item) *string {
	if len(item.Thumbnails) == 0 {
		return nil
	}
	set := item.Thumbnails[0]
	for _, t := range []*graph.Thumbnail{set.Large, set.Medium, set.Small} {
		if t != nil && t.URL != "" {
			u := t.URL
			return &u
		}
	}
	return nil
}

// Reshape partitions upstream items into a sorted folder/file listing.
// It is deterministic and side-effect-free: identical inputs produce
// identical output structure and ordering.
func Reshape(currentFolder string, items []graph.Item) Listing {
	listing := Listing{
		CurrentFolder: currentFolder,
		Folders:       []Entry{},
		Files:         []Entry{},
	}

	for i := range items {
		item := &items[i]
		if item.IsFolder() {
			listing.Folders = append(listing.Folders, Entry{
				ID:       item.ID,
				Name:     item.Name,
				Type:     "folder",
				Size:     item.Size,
				Modified: item.LastModifiedDateTime,
				Created:  item.CreatedDateTime,
				FullPath: item.Name,
				IsMedia:  false,
			})
			continue
		}

		mimeType := item.MimeType()
		listing.Files = append(listing.Files, Entry{
			ID:           item.ID,
			Name:         item.Name,
			Type:         "file",
			Size:         item.Size,
			Modified:     item.LastModifiedDateTime,
			Created:      item.CreatedDateTime,
			MimeType:     mimeType,
			FullPath:     item.Name,
			IsMedia:      IsMedia(item.Name, mimeType),
			MediaType:    MediaType(item.Name, mimeType),
			ThumbnailURL: ThumbnailURL(item),
			DownloadURL:  item.DownloadURL,
		})
	}

	sortEntries(listing.Folders)
	sortEntries(listing.Files)

	listing.FolderCount = len(listing.Folders)
	listing.FileCount = len(listing.Files)
	for _, e := range listing.Folders {
		listing.TotalSize += e.Size
	}
	for _, e := range listing.Files {
		listing.TotalSize += e.Size
		if e.IsMedia {
			listing.MediaCount++
		}
	}

	return listing
}

// Search reshapes search hits into a flat result list, folders first.
func Search(items []graph.Item) SearchResult {
	listing := Reshape("", items)
	results := make([]Entry, 0, len(listing.Folders)+len(listing.Files))
	results = append(results, listing.Folders...)
	results = append(results, listing.Files...)
	return SearchResult{Results: results, Total: len(results)}
}

// sortEntries orders entries by name, locale-aware and case-insensitive.
// The sort is stable so equal names keep their upstream order.
func sortEntries(entries []Entry) {
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(entries, func(i, j int) bool {
		return col.CompareString(entries[i].Name, entries[j].Name) < 0
	})
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
