package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader tells clients whether a response came from the cache.
const CacheHeader = "X-Cache"

type snapshot struct {
	status int
	header http.Header
	body   []byte
}

// replay writes s to w and reports it as a cache hit.
func (s snapshot) replay(w gin.ResponseWriter) {
	dst := w.Header()
	for k, v := range s.header {
		dst[k] = v
	}
	dst.Set(CacheHeader, "HIT")
	w.WriteHeader(s.status)
	w.Write(s.body)
}

// teeWriter copies the body it writes into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheable keeps successful responses that carry no per-client state.
func cacheable(status int, header http.Header) bool {
	return status >= 200 && status < 300 && header.Get("Set-Cookie") == ""
}

// Cache serves repeated GET requests for the same URI from store for ttl.
// Use it on routes whose output does not depend on the caller.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := store.Get(key); ok {
			v.(snapshot).replay(c.Writer)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheHeader, "MISS")
		tee := teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tee
		c.Next()

		if !cacheable(tee.Status(), tee.Header()) {
			return
		}
		header := tee.Header().Clone()
		header.Del(CacheHeader)
		store.Set(key, snapshot{status: tee.Status(), header: header, body: tee.buf.Bytes()}, ttl)
	}
}
