package content

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/urlhandle"
)

// defaultSocialDomains is the extensible default blocklist for
// exclude_social_media_links, declared once as a module-level constant per
// the "global state" design note.
var defaultSocialDomains = map[string]bool{
	"facebook.com": true, "twitter.com": true, "x.com": true, "instagram.com": true,
	"linkedin.com": true, "tiktok.com": true, "pinterest.com": true, "reddit.com": true,
	"youtube.com": true, "snapchat.com": true, "threads.net": true,
}

// ExtractLinksAndMedia runs §4.2 step 2 over rawHTML (the un-narrowed HTML,
// per the target_elements rule), classifying links as internal/external and
// scoring images.
func ExtractLinksAndMedia(rawHTML, finalURL string, cfg *model.RunConfig) (model.LinkBuckets, model.MediaBuckets, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return model.LinkBuckets{}, model.MediaBuckets{}, model.NewCrawlError(model.KindExtractionError, "invalid final URL", err)
	}
	pageDomain := urlhandle.BaseDomain(base.Host)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return model.LinkBuckets{}, model.MediaBuckets{}, model.NewCrawlError(model.KindExtractionError, "failed to parse HTML", err)
	}

	links := extractLinks(doc, base, pageDomain, cfg)
	media := extractMedia(doc, base, cfg)
	return links, media, nil
}

func extractLinks(doc *goquery.Document, base *url.URL, pageDomain string, cfg *model.RunConfig) model.LinkBuckets {
	var buckets model.LinkBuckets
	seen := make(map[string]bool)

	excludeDomains := make(map[string]bool, len(cfg.ExcludeDomains))
	for _, d := range cfg.ExcludeDomains {
		excludeDomains[strings.ToLower(d)] = true
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}

		if cfg.PreserveHTTPSForInternalLinks && base.Scheme == "https" && resolved.Scheme == "http" &&
			urlhandle.SameBaseDomain(resolved.Host, base.Host) {
			resolved.Scheme = "https"
		}

		absURL := resolved.String()
		if seen[absURL] {
			return
		}
		seen[absURL] = true

		linkDomain := urlhandle.BaseDomain(resolved.Host)
		isInternal := linkDomain == pageDomain

		if !isInternal {
			if cfg.ExcludeExternalLinks {
				return
			}
			if cfg.ExcludeSocialMediaLinks && defaultSocialDomains[linkDomain] {
				return
			}
			if excludeDomains[linkDomain] {
				return
			}
		}

		link := model.Link{
			Href:       absURL,
			Text:       strings.TrimSpace(sel.Text()),
			Title:      attrOr(sel, "title"),
			BaseDomain: linkDomain,
		}
		link.IntrinsicScore = scoreLinkIntrinsic(href)
		link.TotalScore = link.IntrinsicScore

		if isInternal {
			buckets.Internal = append(buckets.Internal, link)
		} else {
			buckets.External = append(buckets.External, link)
		}
	})
	return buckets
}

// scoreLinkIntrinsic is a lightweight URL-shape quality signal used both in
// CrawlResult.Links and as the intrinsic half of Best-First deep-crawl
// scoring: shorter paths and absence of obvious tracking/pagination noise
// score higher.
func scoreLinkIntrinsic(href string) float64 {
	score := 1.0
	depth := strings.Count(strings.Trim(href, "/"), "/")
	score -= float64(depth) * 0.05
	if strings.Contains(href, "?") {
		score -= 0.1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func extractMedia(doc *goquery.Document, base *url.URL, cfg *model.RunConfig) model.MediaBuckets {
	var buckets model.MediaBuckets
	if cfg.ExcludeAllImages {
		return buckets
	}

	seen := make(map[string]bool)
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		resolved, err := base.Parse(src)
		if err != nil || resolved.Scheme == "data" {
			return
		}
		absURL := resolved.String()
		if seen[absURL] {
			return
		}
		seen[absURL] = true

		if cfg.ExcludeExternalImages && urlhandle.BaseDomain(resolved.Host) != urlhandle.BaseDomain(base.Host) {
			return
		}

		item := model.MediaItem{
			Src:    absURL,
			Alt:    attrOr(sel, "alt"),
			Type:   model.MediaImage,
			Width:  attrInt(sel, "width"),
			Height: attrInt(sel, "height"),
			Desc:   nearbyText(sel),
		}
		item.Score = scoreImage(item, sel)
		if item.Score < cfg.ImageScoreThreshold {
			return
		}
		buckets.Images = append(buckets.Images, item)
	})

	doc.Find("video[src], video source[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if resolved, err := base.Parse(strings.TrimSpace(src)); err == nil && src != "" {
			buckets.Videos = append(buckets.Videos, model.MediaItem{Src: resolved.String(), Type: model.MediaVideo})
		}
	})
	doc.Find("audio[src], audio source[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if resolved, err := base.Parse(strings.TrimSpace(src)); err == nil && src != "" {
			buckets.Audios = append(buckets.Audios, model.MediaItem{Src: resolved.String(), Type: model.MediaAudio})
		}
	})

	return buckets
}

// scoreImage heuristically scores an image by size attributes, alt-text
// presence, and its position relative to surrounding text, per §4.2 step 2.
func scoreImage(item model.MediaItem, sel *goquery.Selection) int {
	score := 0
	if item.Width > 0 && item.Height > 0 {
		area := item.Width * item.Height
		switch {
		case area >= 200*200:
			score += 5
		case area >= 80*80:
			score += 2
		default:
			score -= 2
		}
	}
	if item.Alt != "" {
		score += 3
	}
	if item.Desc != "" {
		score += 2
	}
	if parent := sel.Parent(); parent.Is("figure, article, main, .content") {
		score += 2
	}
	return score
}

// nearbyText gathers the closest surrounding textual context for an image,
// used as MediaItem.Desc.
func nearbyText(sel *goquery.Selection) string {
	if fig := sel.Closest("figure"); fig.Length() > 0 {
		if cap := fig.Find("figcaption").First().Text(); strings.TrimSpace(cap) != "" {
			return strings.TrimSpace(cap)
		}
	}
	parent := sel.Parent()
	text := strings.TrimSpace(parent.Text())
	if len(text) > 160 {
		text = text[:160]
	}
	return text
}

func attrOr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}

func attrInt(sel *goquery.Selection, name string) int {
	v, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
