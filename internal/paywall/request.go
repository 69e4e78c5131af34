package paywall

import (
	"net/http"
	"strings"
)

// Request is the part of an inbound HTTP request the orchestrator reads.
// It is copied out of the *http.Request once and never modified.
type Request struct {
	ResourceID string
	Method     string
	URI        string
	Header     http.Header
	Cookies    map[string]string
	Secure     bool
	// Machine is true for clients that want JSON rather than a page.
	Machine bool
}

func NewRequest(r *http.Request, resourceID string, forceSecure bool) Request {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	return Request{
		ResourceID: resourceID,
		Method:     r.Method,
		URI:        r.URL.RequestURI(),
		Header:     r.Header.Clone(),
		Cookies:    cookies,
		Secure:     forceSecure || IsSecure(r),
		Machine:    IsMachineClient(r),
	}
}

// IsMachineClient reports whether r asked for JSON, came from XHR or hit
// the REST prefix.
func IsMachineClient(r *http.Request) bool {
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json") {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func IsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
