package downloader

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// ServerMetadata defines version and download information for a language
// server used during reference enrichment.
type ServerMetadata struct {
	Name            string
	Version         string            // fallback if version resolution fails
	BinaryName      string            // name of the executable in the archive
	DownloadURLs    map[string]string // platform -> URL template ({version} placeholder)
	Checksums       map[string]string // platform -> SHA256 checksum
	IsArchive       bool
	ArchivePath     string          // path to binary within archive
	VersionResolver VersionResolver // optional dynamic version resolution
}

// GetServerMetadata returns metadata for a language's server, resolving the
// latest version dynamically when a resolver is configured.
func GetServerMetadata(lang string) (*ServerMetadata, error) {
	metadata, ok := serverMetadata[lang]
	if !ok {
		return nil, fmt.Errorf("no language server metadata for language: %s", lang)
	}

	resolved := &ServerMetadata{
		Name:            metadata.Name,
		Version:         metadata.Version,
		BinaryName:      metadata.BinaryName,
		DownloadURLs:    make(map[string]string),
		Checksums:       metadata.Checksums,
		IsArchive:       metadata.IsArchive,
		ArchivePath:     metadata.ArchivePath,
		VersionResolver: metadata.VersionResolver,
	}

	if metadata.VersionResolver != nil {
		latest, err := metadata.VersionResolver.ResolveLatestVersion(context.Background())
		if err != nil {
			log.Warn().Err(err).Str("lang", lang).Str("fallback", metadata.Version).
				Msg("version resolution failed, using fallback")
		} else {
			resolved.Version = latest
			log.Debug().Str("lang", lang).Str("version", latest).Msg("resolved latest server version")
		}
	}

	for platform, urlTemplate := range metadata.DownloadURLs {
		resolved.DownloadURLs[platform] = strings.ReplaceAll(urlTemplate, "{version}", resolved.Version)
	}
	return resolved, nil
}

// GetPlatformKey returns the platform identifier for the current system.
func GetPlatformKey() string {
	return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
}

var serverMetadata = map[string]*ServerMetadata{
	"go": {
		Name:       "gopls",
		Version:    "v0.21.1",
		BinaryName: "gopls",
		DownloadURLs: map[string]string{
			"linux-amd64":   "https://github.com/golang/tools/releases/download/gopls/{version}/gopls-{version}-linux-amd64.tar.gz",
			"linux-arm64":   "https://github.com/golang/tools/releases/download/gopls/{version}/gopls-{version}-linux-arm64.tar.gz",
			"darwin-amd64":  "https://github.com/golang/tools/releases/download/gopls/{version}/gopls-{version}-darwin-amd64.tar.gz",
			"darwin-arm64":  "https://github.com/golang/tools/releases/download/gopls/{version}/gopls-{version}-darwin-arm64.tar.gz",
			"windows-amd64": "https://github.com/golang/tools/releases/download/gopls/{version}/gopls-{version}-windows-amd64.zip",
		},
		Checksums:       map[string]string{},
		IsArchive:       true,
		ArchivePath:     "gopls",
		VersionResolver: NewGitHubResolver("golang", "tools", "gopls/"),
	},
	"python": {
		Name:       "pyright",
		Version:    "1.1.408",
		BinaryName: "pyright-langserver",
		DownloadURLs: map[string]string{
			"linux-amd64":   "https://registry.npmjs.org/pyright/-/pyright-{version}.tgz",
			"linux-arm64":   "https://registry.npmjs.org/pyright/-/pyright-{version}.tgz",
			"darwin-amd64":  "https://registry.npmjs.org/pyright/-/pyright-{version}.tgz",
			"darwin-arm64":  "https://registry.npmjs.org/pyright/-/pyright-{version}.tgz",
			"windows-amd64": "https://registry.npmjs.org/pyright/-/pyright-{version}.tgz",
		},
		Checksums:       map[string]string{},
		IsArchive:       true,
		ArchivePath:     "package/langserver.index.js",
		VersionResolver: NewNPMResolver("pyright"),
	},
	"typescript": {
		Name:       "typescript-language-server",
		Version:    "5.1.3",
		BinaryName: "typescript-language-server",
		DownloadURLs: map[string]string{
			"linux-amd64":   "https://registry.npmjs.org/typescript-language-server/-/typescript-language-server-{version}.tgz",
			"linux-arm64":   "https://registry.npmjs.org/typescript-language-server/-/typescript-language-server-{version}.tgz",
			"darwin-amd64":  "https://registry.npmjs.org/typescript-language-server/-/typescript-language-server-{version}.tgz",
			"darwin-arm64":  "https://registry.npmjs.org/typescript-language-server/-/typescript-language-server-{version}.tgz",
			"windows-amd64": "https://registry.npmjs.org/typescript-language-server/-/typescript-language-server-{version}.tgz",
		},
		Checksums:       map[string]string{},
		IsArchive:       true,
		ArchivePath:     "package/lib/cli.mjs",
		VersionResolver: NewNPMResolver("typescript-language-server"),
	},
}

func init() {
	// JavaScript shares the TypeScript server.
	serverMetadata["javascript"] = serverMetadata["typescript"]
}
