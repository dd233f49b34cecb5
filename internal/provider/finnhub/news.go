package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"MarketFeed/internal/domain/models"
)

type newsEntry struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
	Related  string `json:"related"`
	Datetime int64  `json:"datetime"`
}

func (e newsEntry) toArticle() models.NewsArticle {
	a := models.NewsArticle{
		Title:       e.Headline,
		URL:         e.URL,
		Source:      e.Source,
		Summary:     e.Summary,
		Category:    e.Category,
		PublishedAt: time.Unix(e.Datetime, 0).UTC(),
	}
	if e.Related != "" {
		a.Symbols = []string{e.Related}
	}
	return a
}

// GeneralNews fetches the latest general market headlines.
func (c *Client) GeneralNews(ctx context.Context) ([]models.NewsArticle, error) {
	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/news?category=general&token=%s", c.baseURL, c.apiKey)

	var entries []newsEntry
	if err := c.http.GetJSON(ctx, u, &entries); err != nil {
		return nil, err
	}
	articles := make([]models.NewsArticle, 0, len(entries))
	for _, e := range entries {
		if e.Headline == "" || e.URL == "" {
			continue
		}
		articles = append(articles, e.toArticle())
	}
	return articles, nil
}

// CompanyNews fetches headlines for one symbol within [from, to].
func (c *Client) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error) {
	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/company-news?symbol=%s&from=%s&to=%s&token=%s",
		c.baseURL, url.QueryEscape(symbol),
		from.Format("2006-01-02"), to.Format("2006-01-02"), c.apiKey)

	var entries []newsEntry
	if err := c.http.GetJSON(ctx, u, &entries); err != nil {
		return nil, err
	}
	articles := make([]models.NewsArticle, 0, len(entries))
	for _, e := range entries {
		if e.Headline == "" || e.URL == "" {
			continue
		}
		a := e.toArticle()
		a.Symbols = []string{symbol}
		articles = append(articles, a)
	}
	return articles, nil
}
