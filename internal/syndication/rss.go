// Package syndication は公開済み投稿のRSSフィードを生成する。
package syndication

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/render"
)

// ItemLimit はフィードに含める投稿の最大件数。
const ItemLimit = 20

// ExcerptLength は要約がない投稿の本文抜粋の最大文字数。
const ExcerptLength = 200

// Config はフィードの設定。
type Config struct {
	Title       string
	Description string
	BaseURL     string
}

// RSSBuilder は投稿一覧からRSS 2.0を生成する。
type RSSBuilder struct {
	config   Config
	renderer *render.Renderer
	now      func() time.Time
}

// NewRSSBuilder はRSSBuilderを生成する。
func NewRSSBuilder(config Config, renderer *render.Renderer) *RSSBuilder {
	if config.Title == "" {
		config.Title = "blogman"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &RSSBuilder{config: config, renderer: renderer, now: time.Now}
}

// Write はpostsのうち公開済みのものを先頭からItemLimit件までRSSとして書き出す。
// postsは新しい順に並んでいることを前提とする。
func (b *RSSBuilder) Write(w io.Writer, posts []*model.Post) error {
	feed := &feeds.Feed{
		Title:       b.config.Title,
		Link:        &feeds.Link{Href: b.config.BaseURL + "/"},
		Description: b.config.Description,
		Created:     b.now(),
	}

	for _, p := range posts {
		if p.Status != model.PostStatusPublished {
			continue
		}
		if len(feed.Items) == ItemLimit {
			break
		}

		description, err := b.describe(p)
		if err != nil {
			return err
		}
		link := fmt.Sprintf("%s/posts/%s", b.config.BaseURL, p.Slug)
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: description,
			Created:     p.CreatedAt,
			Updated:     p.UpdatedAt,
		})
	}
	if len(feed.Items) > 0 {
		feed.Updated = feed.Items[0].Updated
	}

	return feed.WriteRss(w)
}

// describe は要約があればそれを、なければ本文の抜粋を返す。
func (b *RSSBuilder) describe(p *model.Post) (string, error) {
	if s := strings.TrimSpace(p.Summary); s != "" {
		return s, nil
	}
	rendered, err := b.renderer.Render(p.Content)
	if err != nil {
		return "", err
	}
	return render.Excerpt(rendered.HTML, ExcerptLength), nil
}
