package must

import "net/url"

// ParseURL parses a URL that is known to be valid, e.g. one that passed config validation.
func ParseURL(s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic("invalid URL: " + err.Error())
	}
	return u
}
