// Package engines keeps the registry of reverse image search engines. An
// engine is a URL prefix; the image URL is percent-encoded and appended to
// it to build a search link.
package engines

import (
	"errors"
	"fmt"
	"strings"
)

// Engine is one reverse image search provider.
type Engine struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

var (
	ErrNotFound        = errors.New("engine not found")
	ErrDuplicate       = errors.New("engine already exists")
	ErrInvalid         = errors.New("invalid engine")
	ErrUnknownTemplate = errors.New("unknown engine template")
)

// Template is a predefined engine that can be added by key.
type Template struct {
	Name string
	URL  string
}

// Templates are the engines offered for one-click adding.
var Templates = map[string]Template{
	"google": {Name: "Google Images", URL: "https://www.google.com/searchbyimage?image_url="},
	"baidu": {
		Name: "Baidu",
		URL:  "https://graph.baidu.com/s?sign=&rt=upload&rn=10&ct=1&tn=baiduimage&objurl=",
	},
	"yandex": {Name: "Yandex", URL: "https://yandex.com/images/search?rpt=imageview&url="},
	"tineye": {Name: "TinEye", URL: "https://www.tineye.com/search?url="},
	"bing":   {Name: "Bing", URL: "https://www.bing.com/images/searchbyimage?FORM=IRSBIQ&cbir=sbi&imgUrl="},
}

// defaultKeys lists the templates installed on first use, in order.
var defaultKeys = []string{"google", "baidu", "yandex", "tineye"}

// Defaults returns the initial registry. Default engines use their template
// key as ID.
func Defaults() []Engine {
	out := make([]Engine, 0, len(defaultKeys))
	for _, k := range defaultKeys {
		t := Templates[k]
		out = append(out, Engine{ID: k, Name: t.Name, URL: t.URL, Enabled: true})
	}
	return out
}

// validate trims and checks a name and URL pair.
func validate(name, url string) (string, string, error) {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return "", "", fmt.Errorf("%w: name and url are required", ErrInvalid)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", "", fmt.Errorf("%w: url must start with http:// or https://", ErrInvalid)
	}
	return name, url, nil
}

// checkUnique rejects a name or URL already used by an engine other than
// skipID. Comparison is exact.
func checkUnique(list []Engine, name, url, skipID string) error {
	for _, e := range list {
		if e.ID == skipID {
			continue
		}
		if e.Name == name {
			return fmt.Errorf("%w: name %q", ErrDuplicate, name)
		}
		if e.URL == url {
			return fmt.Errorf("%w: url %q", ErrDuplicate, url)
		}
	}
	return nil
}

// Link is a ready-to-open search URL.
type Link struct {
	Engine string `json:"engine"`
	URL    string `json:"url"`
}

// SearchURL appends the encoded image URL to the engine's prefix.
func SearchURL(e Engine, imageURL string) string {
	return e.URL + encodeURIComponent(imageURL)
}

// SearchLinks builds links for every enabled engine, in registry order.
func SearchLinks(list []Engine, imageURL string) []Link {
	var out []Link
	for _, e := range list {
		if e.Enabled {
			out = append(out, Link{Engine: e.Name, URL: SearchURL(e, imageURL)})
		}
	}
	return out
}

// encodeURIComponent percent-encodes every byte outside
// A-Z a-z 0-9 - _ . ! ~ * ' ( ), the set browsers leave alone.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
