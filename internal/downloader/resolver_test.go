package downloader

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type stubTransport struct {
	status int
	body   string
	seen   *http.Request
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.seen = req
	return &http.Response{
		StatusCode: s.status,
		Status:     http.StatusText(s.status),
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestGitHubResolverStripsTagPrefix(t *testing.T) {
	resolver := NewGitHubResolver("golang", "tools", "gopls/")
	transport := &stubTransport{status: 200, body: `{"tag_name": "gopls/v0.21.1"}`}
	resolver.httpClient.Transport = transport

	version, err := resolver.ResolveLatestVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "v0.21.1" {
		t.Errorf("expected v0.21.1, got %s", version)
	}
	if got := transport.seen.URL.String(); got != "https://api.github.com/repos/golang/tools/releases/latest" {
		t.Errorf("unexpected request URL: %s", got)
	}
}

func TestGitHubResolverNoPrefix(t *testing.T) {
	resolver := NewGitHubResolver("example", "server", "")
	resolver.httpClient.Transport = &stubTransport{status: 200, body: `{"tag_name": "v2.3.0"}`}

	version, err := resolver.ResolveLatestVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "v2.3.0" {
		t.Errorf("expected v2.3.0, got %s", version)
	}
}

func TestGitHubResolverErrorStatus(t *testing.T) {
	resolver := NewGitHubResolver("example", "server", "")
	resolver.httpClient.Transport = &stubTransport{status: 403, body: `{"message": "rate limited"}`}

	_, err := resolver.ResolveLatestVersion(context.Background())
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status code in error, got: %v", err)
	}
}

func TestNPMResolver(t *testing.T) {
	resolver := NewNPMResolver("typescript-language-server")
	transport := &stubTransport{status: 200, body: `{"version": "5.1.3"}`}
	resolver.httpClient.Transport = transport

	version, err := resolver.ResolveLatestVersion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "5.1.3" {
		t.Errorf("expected 5.1.3, got %s", version)
	}
	if got := transport.seen.URL.String(); got != "https://registry.npmjs.org/typescript-language-server/latest" {
		t.Errorf("unexpected request URL: %s", got)
	}
}

func TestURLTemplateSubstitution(t *testing.T) {
	for lang, meta := range serverMetadata {
		t.Run(lang, func(t *testing.T) {
			for platform, urlTemplate := range meta.DownloadURLs {
				url := strings.ReplaceAll(urlTemplate, "{version}", meta.Version)
				if strings.Contains(url, "{version}") {
					t.Errorf("unsubstituted placeholder for platform %s: %s", platform, url)
				}
			}
		})
	}
}
