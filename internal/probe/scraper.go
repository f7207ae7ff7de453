package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/netlabgo/netmeter/internal/config"
)

// maxPageSize caps how much of a scraped page is read. Measurement
// targets are sourced from ordinary web pages; anything larger is not
// one.
const maxPageSize = 10 * 1024 * 1024

// Scraper downloads a web page and collects every resource it sources
// as a candidate measurement target. Candidates become targets only
// after an existence check confirms them, either sequentially with
// GenURLList or concurrently with GenURLListThreaded.
type Scraper struct {
	checker *Checker
	client  *http.Client
	logger  *slog.Logger

	// banned hosts are dropped from candidate lists unless the caller
	// rehosts candidates under an explicit host override.
	banned map[string]struct{}

	root  Target
	files []string
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithScrapeTimeout sets the per-request timeout for the page fetch and
// the existence checks.
func WithScrapeTimeout(timeout time.Duration) ScraperOption {
	return func(s *Scraper) {
		s.client.Timeout = timeout
		s.checker = NewChecker(WithCheckTimeout(timeout))
	}
}

// WithBannedHosts replaces the banned host list.
func WithBannedHosts(hosts []string) ScraperOption {
	return func(s *Scraper) {
		s.banned = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			s.banned[h] = struct{}{}
		}
	}
}

// WithScraperLogger sets a custom logger.
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// NewScraper validates rawURL, downloads the page behind it, and
// returns a Scraper holding the page's sourced files as candidates.
// Validation follows redirects the same way Check does, so the root
// target may name a different host than rawURL.
func NewScraper(ctx context.Context, rawURL string, opts ...ScraperOption) (*Scraper, error) {
	s := &Scraper{
		checker: NewChecker(),
		client:  &http.Client{Timeout: config.DefaultTimeout},
		banned:  make(map[string]struct{}, len(config.DefaultBannedHosts)),
	}
	for _, h := range config.DefaultBannedHosts {
		s.banned[h] = struct{}{}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	host, path, scheme, err := splitURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", rawURL, err)
	}

	root, ok := s.checker.Check(ctx, host, path, scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageUnavailable, rawURL)
	}
	s.root = root

	if err := s.fetchPage(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("scraped page", "url", s.root.URL(), "candidates", len(s.files))
	return s, nil
}

// Root returns the validated target for the scraped page itself.
func (s *Scraper) Root() Target {
	return s.root
}

// Files returns the raw candidate references collected from the page,
// before any existence check.
func (s *Scraper) Files() []string {
	return s.files
}

// fetchPage downloads the root page and extracts its sourced files.
func (s *Scraper) fetchPage(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.root.URL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", config.DefaultUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", s.root.URL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %d on %s", ErrPageUnavailable, resp.StatusCode, s.root.URL())
	}

	// Tolerate non-UTF-8 pages; candidates are URLs either way.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageSize), resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.root.URL(), err)
	}

	s.files = extractSources(body)
	return nil
}

// extractSources collects every src attribute value in the document.
// The attribute name is matched case-insensitively; sloppy pages write
// SRC= and Src= too.
func extractSources(r io.Reader) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	files := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "src") && attr.Val != "" {
					files = append(files, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return files
}

// GenURLList checks every candidate sequentially and returns the list
// of confirmed targets, the root first.
//
// A non-empty host rehosts every candidate there, the layout produced
// by mirroring a page onto another server: the candidate's original
// host becomes a path segment, under prefix when one is given. A prefix
// without a host makes no sense and is ignored. Without a host
// override, candidates on banned hosts are dropped before the check.
func (s *Scraper) GenURLList(ctx context.Context, host, prefix string) []Target {
	targets := []Target{s.root}
	for _, f := range s.files {
		if target, ok := s.checkCandidate(ctx, f, host, prefix); ok {
			targets = append(targets, target)
		}
	}
	s.logger.Info("built target list", "targets", len(targets))
	return targets
}

// GenURLListThreaded checks candidates n at a time through the elastic
// pool. Candidates are assumed to live on their native hosts; use
// GenURLList for rehosting. Target order reflects completion, not page
// order.
func (s *Scraper) GenURLListThreaded(ctx context.Context, n int) []Target {
	s.logger.Info("checking candidates", "candidates", len(s.files), "workers", n)

	targets := drain(ctx, n, s.files, func(ctx context.Context, f string) (Target, bool) {
		return s.checkCandidate(ctx, f, "", "")
	})
	targets = append(targets, s.root)

	s.logger.Info("built target list", "targets", len(targets))
	return targets
}

// checkCandidate splits one candidate reference and resolves it through
// the checker, applying the rehosting and banned-host rules.
func (s *Scraper) checkCandidate(ctx context.Context, candidate, host, prefix string) (Target, bool) {
	if candidate == "" {
		return Target{}, false
	}
	cHost, cPath, cScheme, err := splitURL(candidate)
	if err != nil {
		s.logger.Warn("skipping unparseable candidate", "candidate", candidate, "error", err)
		return Target{}, false
	}
	if cHost == "" {
		cHost = s.root.Host
	}
	if cScheme == "" {
		cScheme = s.root.Scheme
	}

	if host != "" {
		resource := fmt.Sprintf("/%s%s", cHost, cPath)
		if prefix != "" {
			resource = fmt.Sprintf("/%s/%s%s", prefix, cHost, cPath)
		}
		return s.checker.Check(ctx, host, resource, s.root.Scheme)
	}

	if _, ok := s.banned[cHost]; ok {
		s.logger.Warn("skipping banned host", "host", cHost)
		return Target{}, false
	}
	return s.checker.Check(ctx, cHost, cPath, cScheme)
}
