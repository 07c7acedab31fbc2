package capture

import (
	"encoding/json"
	"fmt"
	"os"
)

// Cookie is one browser cookie applied to every capture session before
// navigation. Used to present consent or viewer cookies to the site so
// the screenshot shows the player instead of an interstitial.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
	Secure bool   `json:"secure,omitempty"`
}

// LoadCookies reads a JSON cookie list from path. Every entry must carry
// a name and a domain.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies file: %w", err)
	}
	for i, cookie := range cookies {
		if cookie.Name == "" {
			return nil, fmt.Errorf("cookie %d: name is required", i)
		}
		if cookie.Domain == "" {
			return nil, fmt.Errorf("cookie %q: domain is required", cookie.Name)
		}
	}
	return cookies, nil
}
