package model

import "time"

// MediaKind names the media bucket a MediaItem belongs to.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// MediaItem is one image/video/audio reference discovered on a page.
type MediaItem struct {
	Src     string    `json:"src"`
	Alt     string    `json:"alt,omitempty"`
	Desc    string    `json:"desc,omitempty"`
	Score   int       `json:"score"`
	Type    MediaKind `json:"type"`
	GroupID int       `json:"group_id,omitempty"`
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
}

// MediaBuckets groups extracted media by kind.
type MediaBuckets struct {
	Images []MediaItem `json:"images"`
	Videos []MediaItem `json:"videos"`
	Audios []MediaItem `json:"audios"`
}

// HeadData is optional per-link metadata harvested from a followed <head>.
// Populated only by callers that explicitly fetch link targets; nil otherwise.
type HeadData struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Link is one <a href> reference discovered on a page, scored and classified
// as internal or external.
type Link struct {
	Href            string    `json:"href"`
	Text            string    `json:"text,omitempty"`
	Title           string    `json:"title,omitempty"`
	BaseDomain      string    `json:"base_domain,omitempty"`
	HeadData        *HeadData `json:"head_data,omitempty"`
	IntrinsicScore  float64   `json:"intrinsic_score,omitempty"`
	ContextualScore float64   `json:"contextual_score,omitempty"`
	TotalScore      float64   `json:"total_score,omitempty"`
}

// LinkBuckets partitions links by whether they resolve to the crawled page's
// own base domain.
type LinkBuckets struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Table is one structured <table> extracted from the page.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

// Markdown is the sub-record of markdown generation outputs.
type Markdown struct {
	RawMarkdown           string `json:"raw_markdown"`
	MarkdownWithCitations string `json:"markdown_with_citations"`
	ReferencesMarkdown    string `json:"references_markdown"`
	// FitMarkdown and FitHTML are nil unless a content filter ran; they are
	// never synthesized from RawMarkdown/cleaned HTML (invariant 2).
	FitMarkdown *string `json:"fit_markdown,omitempty"`
	FitHTML     *string `json:"fit_html,omitempty"`
}

// Metadata holds page-level information harvested during cleaning.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceURL   string `json:"source_url"`
}

// SSLCertificate captures a minimal description of the peer certificate seen
// during an HTTPS fetch, when the strategy surfaces it.
type SSLCertificate struct {
	Issuer    string    `json:"issuer,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	NotBefore time.Time `json:"not_before,omitempty"`
	NotAfter  time.Time `json:"not_after,omitempty"`
}

// NetworkRequestLog is one captured request/response pair, present only when
// RunConfig.CaptureNetworkRequests is set.
type NetworkRequestLog struct {
	URL        string `json:"url"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code,omitempty"`
	Type       string `json:"type,omitempty"`
}

// ConsoleMessage is one captured browser console line, present only when
// RunConfig.CaptureConsoleMessages is set.
type ConsoleMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// DispatchResult is the per-task concurrency accounting attached to a
// CrawlResult produced via arun_many.
type DispatchResult struct {
	TaskID        string    `json:"task_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	MemoryUsageMB float64   `json:"memory_usage_mb"`
	PeakMemoryMB  float64   `json:"peak_memory_mb"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// CrawlResult is the immutable record produced once per arun call.
type CrawlResult struct {
	URL             string            `json:"url"`
	Success         bool              `json:"success"`
	StatusCode      int               `json:"status_code,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	ErrorKind       ErrorKind         `json:"error_kind,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	SSLCertificate  *SSLCertificate   `json:"ssl_certificate,omitempty"`

	HTML        string `json:"html"`
	CleanedHTML string `json:"cleaned_html,omitempty"`
	FitHTML     string `json:"fit_html,omitempty"`

	Markdown Markdown `json:"markdown"`

	Media MediaBuckets `json:"media"`
	Links LinkBuckets  `json:"links"`
	Tables []Table     `json:"tables,omitempty"`

	// ExtractedContent is a JSON-serialized payload, or empty when no
	// extraction strategy ran or extraction failed.
	ExtractedContent string `json:"extracted_content,omitempty"`

	Metadata Metadata `json:"metadata"`

	DownloadedFiles []string `json:"downloaded_files,omitempty"`
	Screenshot      string   `json:"screenshot,omitempty"` // base64 PNG
	PDF             []byte   `json:"pdf,omitempty"`
	MHTML           string   `json:"mhtml,omitempty"`

	NetworkRequests []NetworkRequestLog `json:"network_requests,omitempty"`
	ConsoleMessages []ConsoleMessage    `json:"console_messages,omitempty"`

	DispatchResult *DispatchResult `json:"dispatch_result,omitempty"`
	RedirectedURL  string          `json:"redirected_url,omitempty"`
}

// Fail builds a success=false CrawlResult for the given error, satisfying
// invariant 1 (success=false ⇒ error_message non-empty).
func Fail(url string, err error) *CrawlResult {
	ce := AsCrawlError(err)
	r := &CrawlResult{
		URL:          url,
		Success:      false,
		ErrorMessage: ce.Error(),
		ErrorKind:    ce.Kind,
	}
	if ce.Kind == KindHttpError {
		r.StatusCode = ce.StatusCode
	}
	return r
}
