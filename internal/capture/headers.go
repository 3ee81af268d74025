package capture

import "net/http"

// stripHeaders lists the headers deleted unconditionally before forwarding.
var stripHeaders = []string{
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"X-Real-Ip",
	"Via",
	"Forwarded",
	"Proxy-Connection",
	"Proxy-Authorization",
}

// browserDefaults are applied only when the header is absent.
var browserDefaults = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}

// Sanitize mutates req's headers in place: strips proxy/forwarding headers,
// fills in browser-like defaults where absent, then applies customHeaders —
// injected last so user intent wins over both steps.
func Sanitize(req *http.Request, customHeaders map[string]string) {
	for _, name := range stripHeaders {
		req.Header.Del(name)
	}

	for name, value := range browserDefaults {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	for name, value := range customHeaders {
		req.Header.Set(name, value)
	}
}
