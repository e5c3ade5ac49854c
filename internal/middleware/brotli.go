package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const (
	brotliQuality   = 5
	brotliMinLength = 1024
)

// compressibleTypes are the response media types worth compressing. Fee
// reports are xlsx (already zipped) and live streams must not be buffered,
// so neither is listed.
var compressibleTypes = map[string]bool{
	"application/json": true,
	"text/plain":       true,
	"text/csv":         true,
	"text/html":        true,
}

// brotliWriter holds back the first brotliMinLength bytes. Once it has seen
// enough to decide, it either compresses the rest or passes everything
// through unchanged.
type brotliWriter struct {
	gin.ResponseWriter
	pending []byte
	decided bool
	enc     *brotli.Writer
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.decided {
		return bw.emit(data)
	}
	bw.pending = append(bw.pending, data...)
	if len(bw.pending) < brotliMinLength {
		return len(data), nil
	}
	bw.decide(compressible(bw.Header().Get("Content-Type")))
	if _, err := bw.release(); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush forces a decision: anything flushed early is a stream, sent plain.
func (bw *brotliWriter) Flush() {
	if !bw.decided {
		bw.decide(false)
		_, _ = bw.release()
	}
	if bw.enc != nil {
		_ = bw.enc.Flush()
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) decide(compress bool) {
	bw.decided = true
	if !compress {
		return
	}
	h := bw.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.enc = brotli.NewWriterLevel(bw.ResponseWriter, brotliQuality)
}

func (bw *brotliWriter) release() (int, error) {
	buf := bw.pending
	bw.pending = nil
	if len(buf) == 0 {
		return 0, nil
	}
	return bw.emit(buf)
}

func (bw *brotliWriter) emit(data []byte) (int, error) {
	if bw.enc != nil {
		return bw.enc.Write(data)
	}
	return bw.ResponseWriter.Write(data)
}

// finish sends short bodies plain and closes the encoder.
func (bw *brotliWriter) finish() error {
	if !bw.decided {
		bw.decide(false)
	}
	if _, err := bw.release(); err != nil {
		return err
	}
	if bw.enc != nil {
		return bw.enc.Close()
	}
	return nil
}

// Brotli compresses JSON and text responses of at least brotliMinLength
// bytes for clients that accept br.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isUpgrade(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()

		if err := bw.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}

func compressible(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && compressibleTypes[mediaType]
}

// isUpgrade reports WebSocket handshakes, which hijack the connection.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
