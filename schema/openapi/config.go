package openapi

import (
	"strings"
)

// Info is the document's info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

type settings struct {
	version    string
	info       Info
	basePath   string
	mediaType  string
	servers    []string
	moduleTags bool
}

func defaultSettings() settings {
	return settings{
		version:   "3.0.3",
		info:      Info{Title: "Store Modules", Version: "1.0.0"},
		mediaType: "application/json",
	}
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*settings)

// InfoOption sets optional fields of Info.
type InfoOption func(*Info)

// WithOpenAPIVersion sets the "openapi" field. Empty keeps 3.0.3.
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(s *settings) {
		if version != "" {
			s.version = version
		}
	}
}

func WithInfoDescription(description string) InfoOption {
	return func(info *Info) { info.Description = description }
}

// WithInfo sets title and version. Empty strings keep the defaults.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(s *settings) {
		if title != "" {
			s.info.Title = title
		}
		if version != "" {
			s.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&s.info)
			}
		}
	}
}

// WithBasePath mounts every module path under path, e.g. "/store".
func WithBasePath(path string) GeneratorOption {
	return func(s *settings) {
		trimmed := strings.Trim(path, "/")
		if trimmed == "" {
			s.basePath = ""
			return
		}
		s.basePath = "/" + trimmed
	}
}

// WithContentType sets the media type of payloads and results.
func WithContentType(mediaType string) GeneratorOption {
	return func(s *settings) {
		if mediaType != "" {
			s.mediaType = mediaType
		}
	}
}

// WithServers lists server URLs in the document. Blank entries are skipped.
func WithServers(urls ...string) GeneratorOption {
	return func(s *settings) {
		for _, url := range urls {
			if url = strings.TrimSpace(url); url != "" {
				s.servers = append(s.servers, url)
			}
		}
	}
}

// WithModuleTags tags every operation with the slash-joined path of the
// module that owns it ("root" for the top module).
func WithModuleTags() GeneratorOption {
	return func(s *settings) { s.moduleTags = true }
}
