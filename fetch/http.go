package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/use-agent/crawl4go/model"
)

// HTTPStrategy issues a single HTTP GET with a Chrome-shaped TLS
// fingerprint, used whenever RunConfig.RequiresBrowser() is false. Directly
// adapted from the teacher's Chrome-fingerprinted utls dialer.
type HTTPStrategy struct {
	client *http.Client
}

var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPStrategy builds an HTTPStrategy whose TLS client hello mimics
// Chrome, locked to HTTP/1.1 (utls negotiating h2 over Go's http.Transport
// produces a framing mismatch).
func NewHTTPStrategy() *HTTPStrategy {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, err
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &HTTPStrategy{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return model.NewCrawlError(model.KindNetworkError, "too many redirects", nil)
				}
				return nil
			},
		},
	}
}

func (s *HTTPStrategy) Name() string { return "http" }

// maxBodyBytes caps response bodies so an unexpectedly huge page can't
// exhaust memory in a batch crawl.
const maxBodyBytes = 20 << 20

func (s *HTTPStrategy) Fetch(ctx context.Context, rawURL string, cfg *model.RunConfig, bcfg *model.BrowserConfig) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewCrawlError(model.KindInvalidScheme, "failed to build request", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	if bcfg != nil {
		for k, v := range bcfg.Headers {
			req.Header.Set(k, v)
		}
		for _, c := range bcfg.Cookies {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
		}
	}
	// cfg.ProxyConfig is not applied: the utls dialer above is fixed at
	// construction time and always connects directly to the target host.

	client := s.client
	if cfg.PageTimeoutMs > 0 {
		c := *s.client
		c.Timeout = time.Duration(cfg.PageTimeoutMs) * time.Millisecond
		client = &c
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewCrawlError(model.KindNetworkError, "http fetch failed for "+rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, model.NewCrawlError(model.KindNetworkError, "failed to read response body", err)
	}

	if resp.StatusCode >= 400 {
		return nil, model.HttpError(resp.StatusCode, "http fetch returned error status for "+rawURL, nil)
	}

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	var ssl *model.SSLCertificate
	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		ssl = &model.SSLCertificate{
			Issuer:    cert.Issuer.String(),
			Subject:   cert.Subject.String(),
			NotBefore: cert.NotBefore,
			NotAfter:  cert.NotAfter,
		}
	}

	return &Result{
		HTML:            string(body),
		StatusCode:      resp.StatusCode,
		FinalURL:        finalURL,
		ResponseHeaders: headers,
		SSLCertificate:  ssl,
	}, nil
}

