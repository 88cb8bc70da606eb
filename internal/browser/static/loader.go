package static

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var aboutBlank = &url.URL{Scheme: "about", Opaque: "blank"}

// loader turns URLs into parsed documents. It understands about:, data:,
// file: and http(s): URLs.
type loader struct {
	client  *http.Client
	timeout time.Duration
}

// load resolves ref against base and parses the target document.
func (l *loader) load(ctx context.Context, base *url.URL, ref string) (*url.URL, *html.Node, error) {
	return l.do(ctx, base, http.MethodGet, ref, nil)
}

// post submits a urlencoded form body.
func (l *loader) post(ctx context.Context, base *url.URL, ref string, form url.Values) (*url.URL, *html.Node, error) {
	return l.do(ctx, base, http.MethodPost, ref, form)
}

func (l *loader) do(ctx context.Context, base *url.URL, method, ref string, form url.Values) (*url.URL, *html.Node, error) {
	if strings.HasPrefix(ref, "data:") {
		body, err := decodeDataURL(ref)
		if err != nil {
			return nil, nil, err
		}
		doc, err := htmlquery.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, nil, fmt.Errorf("parsing data URL: %w", err)
		}
		return &url.URL{Scheme: "data", Opaque: strings.TrimPrefix(ref, "data:")}, doc, nil
	}

	u, err := resolve(base, ref)
	if err != nil {
		return nil, nil, err
	}

	var (
		r     io.ReadCloser
		final = u
	)
	switch u.Scheme {
	case "about":
		r = io.NopCloser(strings.NewReader(""))
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", u, err)
		}
		r = f
	case "http", "https":
		landed, body, err := l.fetch(ctx, method, u, form)
		if err != nil {
			return nil, nil, err
		}
		r = io.NopCloser(bytes.NewReader(body))
		final = landed
	default:
		return nil, nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	defer r.Close()

	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", final, err)
	}
	return final, doc, nil
}

// fetch performs the request and returns the URL it landed on after
// redirects along with the body.
func (l *loader) fetch(ctx context.Context, method string, u *url.URL, form url.Values) (*url.URL, []byte, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", u, err)
	}
	return resp.Request.URL, b, nil
}

// resolve interprets ref relative to base. Relative references need a
// hierarchical base.
func resolve(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if base == nil || base.Opaque != "" || base.Scheme == "" {
		return nil, fmt.Errorf("cannot resolve relative URL %q without a hierarchical base", ref)
	}
	return base.ResolveReference(parsed), nil
}

// decodeDataURL supports the "data:[<mediatype>][;base64],<data>" form.
func decodeDataURL(raw string) ([]byte, error) {
	rest := strings.TrimPrefix(raw, "data:")
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 data URL: %w", err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(data)
	if err != nil {
		// Unescaped markup such as a literal '%' is common in hand-written data URLs.
		return []byte(data), nil
	}
	return []byte(s), nil
}
