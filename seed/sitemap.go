// Package seed implements the "sitemap fetcher" external-collaborator
// contract spec.md §1 names: discovering a site's URL set from sitemap.xml
// and robots.txt Sitemap: directives, ahead of a crawl. It is the default
// implementation callers may substitute, used to pre-populate a deep-crawl
// frontier or to answer a standalone "map this site" call.
package seed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/araddon/dateparse"
	"github.com/temoto/robotstxt"

	"github.com/use-agent/crawl4go/cache"
	"github.com/use-agent/crawl4go/model"
)

// cacheFormatVersion is bumped whenever SitemapCacheEntry's JSON shape
// changes incompatibly.
const cacheFormatVersion = 1

// SitemapCacheEntry is the §6 "Sitemap URL-seeder cache" persisted format:
// {version, created_at, lastmod, url_count, urls[]}.
type SitemapCacheEntry struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Lastmod   time.Time `json:"lastmod,omitempty"`
	URLCount  int       `json:"url_count"`
	URLs      []string  `json:"urls"`
}

// sitemapIndex is a sitemap index XML document, a list of child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod"`
}

// urlset is a regular sitemap XML document, a flat list of page URLs.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod"`
}

// maxSitemapBytes bounds how much of a remote sitemap document is read, so
// a malicious or misconfigured host can't exhaust memory.
const maxSitemapBytes = 10 << 20

// SitemapFetcher discovers a site's URLs from /sitemap.xml and the
// Sitemap: directives in /robots.txt, with the §6 cache format fronting
// repeat calls against the same TTL/lastmod-invalidated entry.
type SitemapFetcher struct {
	client *http.Client
	store  cache.Store
	ttl    time.Duration
}

// NewSitemapFetcher builds a SitemapFetcher. store may be nil to disable
// caching; ttl is ignored when store is nil.
func NewSitemapFetcher(client *http.Client, store cache.Store, ttl time.Duration) *SitemapFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SitemapFetcher{client: client, store: store, ttl: ttl}
}

// Discover returns every URL discoverable for baseURL's origin via
// /sitemap.xml and robots.txt Sitemap: directives, deduplicated. A cached
// entry is served when present and not invalidated by a lastmod change.
func (f *SitemapFetcher) Discover(ctx context.Context, baseURL string) (*SitemapCacheEntry, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, model.NewCrawlError(model.KindInvalidScheme, "invalid base url for sitemap discovery", err)
	}
	origin := u.Scheme + "://" + u.Host
	key := "sitemap:" + origin

	seen := map[string]struct{}{}
	var latestLastmod time.Time

	collect := func(urls []string, lastmods []string) {
		for i, loc := range urls {
			if loc == "" {
				continue
			}
			seen[loc] = struct{}{}
			if i < len(lastmods) && lastmods[i] != "" {
				if t, err := dateparse.ParseAny(lastmods[i]); err == nil && t.After(latestLastmod) {
					latestLastmod = t
				}
			}
		}
	}

	locs, lastmods := f.fetchSitemap(ctx, origin+"/sitemap.xml")
	collect(locs, lastmods)

	for _, sitemapURL := range f.robotsSitemaps(ctx, origin+"/robots.txt") {
		locs, lastmods := f.fetchSitemap(ctx, sitemapURL)
		collect(locs, lastmods)
	}

	if f.store != nil {
		if cached, ok := f.cached(key); ok {
			if !latestLastmod.After(cached.Lastmod) {
				return cached, nil
			}
		}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}

	entry := &SitemapCacheEntry{
		Version:   cacheFormatVersion,
		CreatedAt: time.Now(),
		Lastmod:   latestLastmod,
		URLCount:  len(urls),
		URLs:      urls,
	}

	if f.store != nil {
		if data, err := json.Marshal(entry); err == nil {
			_ = f.store.Set(key, data, f.ttl)
		}
	}

	return entry, nil
}

func (f *SitemapFetcher) cached(key string) (*SitemapCacheEntry, bool) {
	data, ok, err := f.store.Get(key)
	if err != nil || !ok {
		return nil, false
	}
	var entry SitemapCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// fetchSitemap fetches and parses a sitemap XML document, recursing into
// sitemap index entries. It returns parallel loc/lastmod slices.
func (f *SitemapFetcher) fetchSitemap(ctx context.Context, sitemapURL string) (locs, lastmods []string) {
	body, ok := f.getBody(ctx, sitemapURL, maxSitemapBytes)
	if !ok {
		return nil, nil
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, s := range idx.Sitemaps {
			if s.Loc == "" {
				continue
			}
			subLocs, subLastmods := f.fetchSitemap(ctx, s.Loc)
			locs = append(locs, subLocs...)
			lastmods = append(lastmods, subLastmods...)
		}
		return locs, lastmods
	}

	var us urlset
	if err := xml.Unmarshal(body, &us); err != nil {
		return nil, nil
	}
	for _, u := range us.URLs {
		if u.Loc == "" {
			continue
		}
		locs = append(locs, u.Loc)
		lastmods = append(lastmods, u.Lastmod)
	}
	return locs, lastmods
}

// robotsSitemaps fetches robots.txt and returns its Sitemap: directives.
func (f *SitemapFetcher) robotsSitemaps(ctx context.Context, robotsURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.Sitemaps
}

func (f *SitemapFetcher) getBody(ctx context.Context, target string, limit int64) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, false
	}
	return body, true
}
