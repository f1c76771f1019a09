package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/explorer"
	"github.com/hul1hu/mediadrive/internal/graph"
	"github.com/hul1hu/mediadrive/internal/logging"
)

// handleBrowse lists a folder's children, reshaped for the frontend.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := auth.TokenFrom(ctx)

	folderID := r.URL.Query().Get("folder_id")
	if folderID == "" {
		folderID = "root"
	}

	items, err := s.graph.Children(ctx, token, folderID)
	if err != nil {
		logging.Warn("browse failed", zap.String("folder_id", folderID), zap.Error(err))
		s.sendError(w, upstreamStatus(err), "Failed to browse folder")
		return
	}

	currentFolder := "Root"
	if folderID != "root" {
		if item, err := s.graph.Item(ctx, token, folderID); err == nil {
			currentFolder = item.Name
		}
	}

	s.writeJSON(w, http.StatusOK, explorer.Reshape(currentFolder, items))
}

// handleSearch searches the whole drive. Also serves the legacy
// /api/files/search route.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := auth.TokenFrom(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendError(w, http.StatusBadRequest, "Search query required")
		return
	}

	items, err := s.graph.Search(ctx, token, query)
	if err != nil {
		logging.Warn("search failed", zap.String("q", query), zap.Error(err))
		s.sendError(w, upstreamStatus(err), "Search failed")
		return
	}

	s.writeJSON(w, http.StatusOK, explorer.Search(items))
}

// legacyFile is the flat shape the original /api/files endpoint exposed.
type legacyFile struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Size        int64                `json:"size"`
	MimeType    string               `json:"mimeType"`
	DownloadURL string               `json:"downloadUrl,omitempty"`
	WebURL      string               `json:"webUrl,omitempty"`
	Thumbnails  []graph.ThumbnailSet `json:"thumbnails"`
	MediaType   string               `json:"media_type"`
}

// handleLegacyFiles returns playable files in the drive root as a flat
// list. /api/files/all is an alias; the original never implemented the
// recursive walk it advertised.
func (s *Server) handleLegacyFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := auth.TokenFrom(ctx)

	items, err := s.graph.Children(ctx, token, "root")
	if err != nil {
		logging.Warn("legacy file list failed", zap.Error(err))
		s.sendError(w, upstreamStatus(err), "Failed to fetch files")
		return
	}

	videos := []legacyFile{}
	for i := range items {
		item := &items[i]
		if item.IsFolder() || !explorer.IsPlayable(item.Name) {
			continue
		}
		mimeType := item.MimeType()
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		thumbnails := item.Thumbnails
		if thumbnails == nil {
			thumbnails = []graph.ThumbnailSet{}
		}
		videos = append(videos, legacyFile{
			ID:          item.ID,
			Name:        item.Name,
			Size:        item.Size,
			MimeType:    mimeType,
			DownloadURL: item.DownloadURL,
			WebURL:      item.WebURL,
			Thumbnails:  thumbnails,
			MediaType:   explorer.MediaType(item.Name, ""),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string][]legacyFile{"videos": videos})
}

// upstreamStatus maps a Graph client error to the response status:
// upstream said no -> 400, anything else (network, decode) -> 500.
func upstreamStatus(err error) int {
	var se *graph.StatusError
	if errors.As(err, &se) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
