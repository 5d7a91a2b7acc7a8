package downloader

import (
	"runtime"
	"strings"
	"testing"
)

func TestServerMetadataPresence(t *testing.T) {
	tests := []struct {
		lang    string
		present bool
	}{
		{"go", true},
		{"python", true},
		{"typescript", true},
		{"javascript", true},
		{"unsupported", false},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			meta, ok := serverMetadata[tt.lang]
			if !tt.present {
				if ok {
					t.Error("expected no metadata for unsupported language")
				}
				return
			}
			if !ok {
				t.Fatal("expected metadata to be present")
			}
			if meta.Name == "" {
				t.Error("expected non-empty name")
			}
			if meta.Version == "" {
				t.Error("expected non-empty fallback version")
			}
			if meta.BinaryName == "" {
				t.Error("expected non-empty binary name")
			}
		})
	}
}

func TestJavaScriptSharesTypeScriptServer(t *testing.T) {
	if serverMetadata["javascript"] != serverMetadata["typescript"] {
		t.Error("expected javascript to alias the typescript server metadata")
	}
}

func TestGetPlatformKey(t *testing.T) {
	platform := GetPlatformKey()
	parts := strings.Split(platform, "-")
	if len(parts) != 2 {
		t.Errorf("expected format 'os-arch', got %s", platform)
	}

	expected := runtime.GOOS + "-" + runtime.GOARCH
	if platform != expected {
		t.Errorf("expected %s, got %s", expected, platform)
	}
}

func TestGetCacheDir(t *testing.T) {
	t.Setenv("SYMGRAPH_CACHE_DIR", "/tmp/symgraph-test-cache")

	cacheDir, err := GetCacheDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cacheDir != "/tmp/symgraph-test-cache/lsp" {
		t.Errorf("expected env override to win, got %s", cacheDir)
	}
}

func TestGetCacheDirDefault(t *testing.T) {
	t.Setenv("SYMGRAPH_CACHE_DIR", "")

	cacheDir, err := GetCacheDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cacheDir == "" {
		t.Error("expected non-empty cache directory")
	}
	if !strings.HasSuffix(cacheDir, "lsp") {
		t.Errorf("expected cache dir to end with 'lsp', got %s", cacheDir)
	}
}

func TestMetadataHasPlatformURLs(t *testing.T) {
	languages := []string{"go", "python", "typescript"}
	platforms := []string{
		"linux-amd64",
		"linux-arm64",
		"darwin-amd64",
		"darwin-arm64",
		"windows-amd64",
	}

	for _, lang := range languages {
		t.Run(lang, func(t *testing.T) {
			meta := serverMetadata[lang]
			for _, platform := range platforms {
				url, ok := meta.DownloadURLs[platform]
				if !ok {
					t.Errorf("missing download URL for platform %s", platform)
					continue
				}
				if !strings.HasPrefix(url, "https://") {
					t.Errorf("invalid URL for platform %s: %s", platform, url)
				}
			}
		})
	}
}

func TestBinaryNames(t *testing.T) {
	tests := []struct {
		lang       string
		binaryName string
	}{
		{"go", "gopls"},
		{"python", "pyright-langserver"},
		{"typescript", "typescript-language-server"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			meta := serverMetadata[tt.lang]
			if meta.BinaryName != tt.binaryName {
				t.Errorf("expected binary name %s, got %s", tt.binaryName, meta.BinaryName)
			}
		})
	}
}

func TestDownloaderCreation(t *testing.T) {
	dl, err := New()
	if err != nil {
		t.Fatalf("failed to create downloader: %v", err)
	}
	if dl.cacheDir == "" {
		t.Error("expected non-empty cache directory")
	}
	if dl.client == nil {
		t.Error("expected non-nil HTTP client")
	}
}
