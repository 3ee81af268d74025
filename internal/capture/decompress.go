package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// MaxBodyBytes is the default cap on captured request/response bodies.
const MaxBodyBytes = 10 * 1024 * 1024

// textualContentTypeSubstrings is the textual content-type heuristic:
// case-insensitive substring match.
var textualContentTypeSubstrings = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/x-www-form-urlencoded",
	"application/graphql",
}

// IsTextualContentType reports whether the given Content-Type header value
// should be captured as body text. An empty content-type is treated as
// textual.
func IsTextualContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	lower := strings.ToLower(contentType)
	for _, sub := range textualContentTypeSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// Decompress decodes body according to the Content-Encoding header value. A
// decompression failure returns ok=false: the pipeline swallows it, still
// forwards the raw bytes to the client, and captures an empty response body.
//
// For `deflate`, both the zlib-wrapped and raw DEFLATE variants are
// attempted, since upstreams disagree on which one the name refers to.
func Decompress(contentEncoding string, raw []byte) (body []byte, ok bool) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "":
		return raw, true
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, false
		}
		return out, true
	case "br":
		r := brotli.NewReader(bytes.NewReader(raw))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, false
		}
		return out, true
	case "deflate":
		if out, err := io.ReadAll(flate.NewReader(bytes.NewReader(raw))); err == nil {
			return out, true
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, false
		}
		return out, true
	default:
		return raw, true
	}
}

// ReadCapped reads at most max bytes from r. The proxy never buffers more
// than MaxBodyBytes of any body; the returned length is the number of bytes
// actually read — the pre-decompression byte count of what was read from
// upstream, up to the cap — so a body longer than max is silently truncated
// at the source instead of read in full and sliced afterward.
func ReadCapped(r io.Reader, max int) ([]byte, error) {
	limited := io.LimitReader(r, int64(max))
	return io.ReadAll(limited)
}
