package api

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/explorer"
	"github.com/hul1hu/mediadrive/internal/logging"
	"github.com/hul1hu/mediadrive/internal/metrics"
)

// Package-level compiled regex for Range header parsing.
var rangeRegex = regexp.MustCompile(`^bytes=(\d*)-(\d*)`)

// handleStream relays file bytes from the upstream download URL, honoring
// Range requests. Bodies are streamed through io.Copy, never buffered in
// full; the request context rides along into the upstream fetch so a
// client disconnect cancels the transfer.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := auth.TokenFrom(ctx)
	itemID := chi.URLParam(r, "id")

	item, err := s.graph.Item(ctx, token, itemID)
	if err != nil {
		logging.Warn("stream metadata lookup failed", zap.String("item_id", itemID), zap.Error(err))
		s.sendError(w, http.StatusNotFound, "File not found")
		return
	}
	if item.DownloadURL == "" {
		s.sendError(w, http.StatusNotFound, "Download URL not available")
		return
	}

	contentType := explorer.StreamContentType(item.Name, item.MimeType())

	if start, end, ok := parseRange(r.Header.Get("Range"), item.Size); ok {
		resp, err := s.graph.FetchRange(ctx, item.DownloadURL, start, end)
		if err == nil {
			defer resp.Body.Close()
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, item.Size))
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusPartialContent)

			n, copyErr := io.Copy(w, resp.Body)
			if copyErr != nil {
				logging.Warn("range stream interrupted",
					zap.String("item_id", itemID),
					zap.Int64("bytes", n),
					zap.Error(copyErr))
			}
			metrics.RecordStream("range", n, copyErr == nil)
			return
		}
		// A failed upstream range fetch degrades to a full-file response
		// instead of erroring, so an unsupported range never blocks playback.
		logging.Warn("upstream range fetch failed, serving full file",
			zap.String("item_id", itemID), zap.Error(err))
	}

	resp, err := s.graph.Fetch(ctx, item.DownloadURL)
	if err != nil {
		logging.Error("full-file fetch failed", zap.String("item_id", itemID), zap.Error(err))
		metrics.RecordStream("full", 0, false)
		s.sendError(w, http.StatusInternalServerError, "Failed to stream file")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		logging.Warn("full stream interrupted",
			zap.String("item_id", itemID),
			zap.Int64("bytes", n),
			zap.Error(copyErr))
	}
	metrics.RecordStream("full", n, copyErr == nil)
}

// parseRange parses a "bytes=<start>-<end>" header against the file size.
// Within a parsable header a missing start defaults to 0 and a missing end
// to size-1; a header that does not match the bytes= shape at all reports
// no range, sending the caller down the full-file path.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if header == "" || size <= 0 {
		return 0, 0, false
	}
	m := rangeRegex.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false
	}

	if m[1] != "" {
		start, _ = strconv.ParseInt(m[1], 10, 64)
	}
	end = size - 1
	if m[2] != "" {
		if e, err := strconv.ParseInt(m[2], 10, 64); err == nil {
			end = e
		}
	}

	if end > size-1 {
		end = size - 1
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// handleThumbnail is a stub; the frontend falls back to placeholder art.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, http.StatusNotImplemented, "Thumbnail not implemented yet")
}

// handleSubtitles reports no sidecar subtitles; discovery is a stub.
func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"subtitles": {}})
}

func (s *Server) handleSubtitleContent(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, http.StatusNotImplemented, "Subtitle content not implemented yet")
}
