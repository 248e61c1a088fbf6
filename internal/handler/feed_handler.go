package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/hitoshi/blogman/internal/model"
)

// FeedSource はRSSに載せる公開済み投稿を返す。
type FeedSource interface {
	PublishedFeed(ctx context.Context) ([]*model.Post, error)
}

// FeedWriter は投稿一覧をRSSとして書き出す。
type FeedWriter interface {
	Write(w io.Writer, posts []*model.Post) error
}

// FeedHandler はRSSフィード配信のHTTPハンドラー。
type FeedHandler struct {
	source FeedSource
	writer FeedWriter
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(source FeedSource, writer FeedWriter) *FeedHandler {
	return &FeedHandler{source: source, writer: writer}
}

// ServeRSS は最新の公開済み投稿をRSS 2.0で返す。
// GET /feed.xml
func (h *FeedHandler) ServeRSS(w http.ResponseWriter, r *http.Request) {
	posts, err := h.source.PublishedFeed(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.writer.Write(&buf, posts); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
