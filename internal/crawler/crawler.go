package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/model"
)

// Config carries the crawl tunables.
type Config struct {
	// StartURL is the first list page.
	StartURL string
	// SettleInterval is how often to re-count list rows after a
	// pagination click.
	SettleInterval time.Duration
	// SettlePolls bounds how many times a pagination click is
	// re-checked before the page is treated as settled.
	SettlePolls int
	// MaxPages caps the pagination loop; zero means unbounded.
	MaxPages int
	// CommentConcurrency bounds parallel comment-thread fetches.
	CommentConcurrency int
	// DomainQPS rate-limits requests per target host.
	DomainQPS float64
}

// Crawler walks the paginated article list and the per-article comment
// threads, producing fully hydrated records for ingestion.
type Crawler struct {
	browser  Browser
	cfg      Config
	logger   *zap.Logger
	limiters sync.Map // host -> *rate.Limiter
}

// New builds a Crawler over the given browser.
func New(browser Browser, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = 500 * time.Millisecond
	}
	if cfg.SettlePolls <= 0 {
		cfg.SettlePolls = 6
	}
	if cfg.CommentConcurrency <= 0 {
		cfg.CommentConcurrency = 4
	}
	return &Crawler{browser: browser, cfg: cfg, logger: logger}
}

// ExtractArticles runs one full crawl: it pages through the article list
// until the "load more" control disappears, then fetches each article's
// comment thread. A failure on the list page abandons the whole crawl;
// a failure on an individual thread only costs that article its
// comments.
func (c *Crawler) ExtractArticles(ctx context.Context) ([]model.ArticleRecord, error) {
	sess, err := c.browser.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	if err := c.waitDomainBudget(ctx, c.cfg.StartURL); err != nil {
		return nil, err
	}
	if err := sess.Navigate(ctx, c.cfg.StartURL); err != nil {
		metrics.ObserveCrawlPage("error")
		return nil, err
	}

	records, err := c.paginate(ctx, sess)
	if err != nil {
		return nil, err
	}
	c.logger.Info("list crawl complete", zap.Int("articles", len(records)))

	c.fetchComments(ctx, records)
	return records, nil
}

// paginate collects rows from the current page, clicks the "load more"
// control, and repeats until the control is gone or MaxPages is hit.
// Only rows that appeared since the previous pass are parsed, so each
// article is recorded once even though the list grows in place.
func (c *Crawler) paginate(ctx context.Context, sess Session) ([]model.ArticleRecord, error) {
	var records []model.ArticleRecord
	for page := 1; ; page++ {
		html, err := sess.HTML(ctx)
		if err != nil {
			metrics.ObserveCrawlPage("error")
			return nil, err
		}
		parsed, err := ParseArticleList(html, c.cfg.StartURL)
		if err != nil {
			metrics.ObserveCrawlPage("error")
			return nil, err
		}
		if len(parsed) > len(records) {
			records = append(records, parsed[len(records):]...)
		}
		metrics.ObserveCrawlPage("ok")
		c.logger.Debug("list page parsed",
			zap.Int("page", page),
			zap.Int("articles", len(records)))

		if c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages {
			return records, nil
		}
		more, err := sess.Exists(ctx, selectorMoreLink)
		if err != nil {
			return nil, err
		}
		if !more {
			return records, nil
		}

		before, err := sess.Count(ctx, selectorListRow)
		if err != nil {
			return nil, err
		}
		if err := sess.Click(ctx, selectorMoreLink); err != nil {
			return nil, err
		}
		if err := c.waitSettled(ctx, sess, before); err != nil {
			return nil, err
		}
	}
}

// waitSettled polls the list row count until it moves past the
// pre-click value or the poll budget runs out. Running out is not an
// error: the next loop pass re-checks the "load more" control and exits
// cleanly if the page truly stopped growing.
func (c *Crawler) waitSettled(ctx context.Context, sess Session, before int) error {
	ticker := time.NewTicker(c.cfg.SettleInterval)
	defer ticker.Stop()
	for poll := 0; poll < c.cfg.SettlePolls; poll++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		count, err := sess.Count(ctx, selectorListRow)
		if err != nil {
			return err
		}
		if count > before {
			return nil
		}
	}
	c.logger.Debug("pagination settle timed out", zap.Int("rows", before))
	return nil
}

// fetchComments hydrates each record's Comments in place, with a bounded
// number of concurrent thread sessions. A failed thread fetch leaves
// that record with no comments.
func (c *Crawler) fetchComments(ctx context.Context, records []model.ArticleRecord) {
	sem := make(chan struct{}, c.cfg.CommentConcurrency)
	var wg sync.WaitGroup
	for i := range records {
		if records[i].CommentsURL == "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rec *model.ArticleRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			comments, err := c.fetchThread(ctx, rec.CommentsURL)
			if err != nil {
				metrics.ObserveCommentFetch("error")
				c.logger.Warn("comment fetch failed",
					zap.String("url", rec.CommentsURL),
					zap.Error(err))
				return
			}
			metrics.ObserveCommentFetch("ok")
			rec.Comments = comments
		}(&records[i])
	}
	wg.Wait()
}

func (c *Crawler) fetchThread(ctx context.Context, threadURL string) ([]model.CommentRecord, error) {
	if err := c.waitDomainBudget(ctx, threadURL); err != nil {
		return nil, err
	}
	sess, err := c.browser.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, threadURL); err != nil {
		return nil, err
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseComments(html)
}

// waitDomainBudget blocks until the per-host rate limiter grants a slot.
func (c *Crawler) waitDomainBudget(ctx context.Context, rawURL string) error {
	if c.cfg.DomainQPS <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	limiter, _ := c.limiters.LoadOrStore(u.Host,
		rate.NewLimiter(rate.Limit(c.cfg.DomainQPS), 1))
	if err := limiter.(*rate.Limiter).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", u.Host, err)
	}
	return nil
}
