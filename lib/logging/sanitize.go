package logging

import "net/url"

// SanitizeURL removes the query from a URL before it is logged.
// Query parameters carry subject identifiers (ICN) and authorization codes, so they must not end up in logs.
func SanitizeURL(requestURL *url.URL) *url.URL {
	if requestURL == nil {
		return nil
	}
	requestURLWithoutQuery := *requestURL
	requestURLWithoutQuery.RawQuery = ""
	return &requestURLWithoutQuery
}
