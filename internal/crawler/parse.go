package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsloom/newsloom/internal/model"
)

// DOM selectors for the paginated list page and comment thread pages.
const (
	selectorListRow    = "tr.athing:not(.comtr)"
	selectorCommentRow = "tr.athing.comtr"
	selectorMoreLink   = "a.morelink"
)

const anonymousAuthor = "Anonymous"

// ageLayout matches the machine-readable half of the .age title
// attribute, e.g. "2024-05-06T12:00:00 1714996800".
const ageLayout = "2006-01-02T15:04:05"

// ParseArticleList extracts one record per list row from a rendered list
// page. Rows missing a title or link are skipped; every other missing
// fragment degrades to an empty value.
func ParseArticleList(html, baseURL string) ([]model.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse list page: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	var records []model.ArticleRecord
	doc.Find(selectorListRow).Each(func(_ int, row *goquery.Selection) {
		titleLink := row.Find(".titleline a").First()
		title := strings.TrimSpace(titleLink.Text())
		href, _ := titleLink.Attr("href")
		if title == "" || href == "" {
			return
		}

		rec := model.ArticleRecord{
			Title:  title,
			URL:    resolveHref(base, href),
			Source: strings.TrimSpace(row.Find(".sitestr").First().Text()),
		}

		// The metadata lives in the sibling row below the item row.
		meta := row.Next()
		rec.Author = strings.TrimSpace(meta.Find(".hnuser").First().Text())
		if attr, ok := meta.Find(".age").First().Attr("title"); ok {
			rec.PublishedDate = parseAgeTitle(attr)
		}
		if commentHref, ok := meta.Find(`a[href^="item?id="]`).Last().Attr("href"); ok {
			rec.CommentsURL = resolveHref(base, commentHref)
		}

		records = append(records, rec)
	})
	return records, nil
}

// ParseComments extracts the flattened comment rows from a rendered
// thread page. Deleted comments keep their row with an empty body, and
// rows without a visible author fall back to a placeholder name.
func ParseComments(html string) ([]model.CommentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse thread page: %w", err)
	}

	var comments []model.CommentRecord
	doc.Find(selectorCommentRow).Each(func(_ int, row *goquery.Selection) {
		rec := model.CommentRecord{
			Author: strings.TrimSpace(row.Find(".hnuser").First().Text()),
			Text:   strings.TrimSpace(row.Find(".commtext").First().Text()),
		}
		if rec.Author == "" {
			rec.Author = anonymousAuthor
		}
		if attr, ok := row.Find(".age").First().Attr("title"); ok {
			rec.PublishedDate = parseAgeTitle(attr)
		}
		comments = append(comments, rec)
	})
	return comments, nil
}

// parseAgeTitle converts the first token of a timestamp title attribute
// into a UTC time, returning nil when the attribute is malformed.
func parseAgeTitle(attr string) *time.Time {
	token, _, _ := strings.Cut(strings.TrimSpace(attr), " ")
	if token == "" {
		return nil
	}
	ts, err := time.ParseInLocation(ageLayout, token, time.UTC)
	if err != nil {
		return nil
	}
	return &ts
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
