package content

import (
	"testing"

	"github.com/use-agent/crawl4go/model"
)

const linksTestHTML = `<html><body>
<a href="/internal-page">Internal</a>
<a href="https://example.com/internal-page">Internal duplicate</a>
<a href="https://other.com/page">External</a>
<a href="https://facebook.com/share">Social</a>
<a href="javascript:void(0)">JS link</a>
<a href="mailto:test@example.com">Mail</a>
<img src="/large.png" alt="a nice photo" width="300" height="300">
<img src="/tiny.png" width="10" height="10">
<img src="data:image/png;base64,AAA">
<video src="/clip.mp4"></video>
<audio src="/clip.mp3"></audio>
</body></html>`

func TestExtractLinksAndMediaClassifiesInternalExternal(t *testing.T) {
	cfg := model.Defaults()
	links, _, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", &cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	if len(links.Internal) != 1 {
		t.Fatalf("expected 1 deduplicated internal link, got %d: %+v", len(links.Internal), links.Internal)
	}
	if len(links.External) != 2 {
		t.Fatalf("expected 2 external links (other.com, facebook.com), got %d: %+v", len(links.External), links.External)
	}
}

func TestExtractLinksAndMediaExcludesSocialMediaWhenRequested(t *testing.T) {
	cfg := model.Defaults().Clone(func(c *model.RunConfig) { c.ExcludeSocialMediaLinks = true })
	links, _, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	for _, l := range links.External {
		if l.BaseDomain == "facebook.com" {
			t.Error("expected facebook.com to be excluded as social media")
		}
	}
}

func TestExtractLinksAndMediaExcludesExternalLinks(t *testing.T) {
	cfg := model.Defaults().Clone(func(c *model.RunConfig) { c.ExcludeExternalLinks = true })
	links, _, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	if len(links.External) != 0 {
		t.Errorf("expected no external links, got %d", len(links.External))
	}
}

func TestExtractLinksAndMediaSkipsJSAndMailtoAndTel(t *testing.T) {
	cfg := model.Defaults()
	links, _, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", &cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	all := append(append([]model.Link{}, links.Internal...), links.External...)
	for _, l := range all {
		if l.Href == "javascript:void(0)" || l.BaseDomain == "" {
			t.Errorf("expected javascript:/mailto:/tel: links to be skipped, found %+v", l)
		}
	}
}

func TestExtractLinksAndMediaExcludeAllImages(t *testing.T) {
	cfg := model.Defaults().Clone(func(c *model.RunConfig) { c.ExcludeAllImages = true })
	_, media, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	if len(media.Images) != 0 {
		t.Errorf("expected no images when ExcludeAllImages is set, got %d", len(media.Images))
	}
}

func TestExtractLinksAndMediaScoresImagesAndSkipsDataURIs(t *testing.T) {
	cfg := model.Defaults()
	_, media, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", &cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	if len(media.Images) != 2 {
		t.Fatalf("expected 2 non-data-uri images, got %d: %+v", len(media.Images), media.Images)
	}
	var large, tiny *model.MediaItem
	for i := range media.Images {
		img := &media.Images[i]
		if img.Src == "https://example.com/large.png" {
			large = img
		}
		if img.Src == "https://example.com/tiny.png" {
			tiny = img
		}
	}
	if large == nil || tiny == nil {
		t.Fatalf("expected both large and tiny images to be present: %+v", media.Images)
	}
	if large.Score <= tiny.Score {
		t.Errorf("expected the larger, alt-text image to score higher: large=%d tiny=%d", large.Score, tiny.Score)
	}
}

func TestExtractLinksAndMediaVideoAndAudio(t *testing.T) {
	cfg := model.Defaults()
	_, media, err := ExtractLinksAndMedia(linksTestHTML, "https://example.com/", &cfg)
	if err != nil {
		t.Fatalf("ExtractLinksAndMedia: %v", err)
	}
	if len(media.Videos) != 1 || media.Videos[0].Src != "https://example.com/clip.mp4" {
		t.Errorf("Videos = %+v", media.Videos)
	}
	if len(media.Audios) != 1 || media.Audios[0].Src != "https://example.com/clip.mp3" {
		t.Errorf("Audios = %+v", media.Audios)
	}
}

func TestScoreLinkIntrinsicPrefersShorterAndUntrackedPaths(t *testing.T) {
	shallow := scoreLinkIntrinsic("/about")
	deep := scoreLinkIntrinsic("/a/b/c/d/e")
	if shallow <= deep {
		t.Errorf("expected a shallow path to score higher than a deep one: shallow=%f deep=%f", shallow, deep)
	}
	tracked := scoreLinkIntrinsic("/page?utm_source=x")
	untracked := scoreLinkIntrinsic("/page")
	if untracked <= tracked {
		t.Errorf("expected an untracked URL to score higher: tracked=%f untracked=%f", tracked, untracked)
	}
}
