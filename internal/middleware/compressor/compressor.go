package compressor

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/pool"
	"github.com/gin-gonic/gin"
)

type gzipWriter struct {
	gin.ResponseWriter
	writer     *gzip.Writer
	compressed bool
}

// compressible сжимаем только JSON и HTML
func compressible(contentType string) bool {
	return strings.Contains(contentType, "application/json") || strings.Contains(contentType, "text/html")
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	if compressible(g.Header().Get("Content-Type")) {
		if !g.compressed {
			g.Header().Set("Content-Encoding", "gzip")
			g.Header().Del("Content-Length")
			g.writer.Reset(g.ResponseWriter)
			g.compressed = true
		}
		return g.writer.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) Close() error {
	if g.compressed {
		return g.writer.Close()
	}
	return nil
}

// Reset готовит writer к повторному использованию из пула
func (g *gzipWriter) Reset() {
	g.ResponseWriter = nil
	g.compressed = false
	g.writer.Reset(io.Discard)
}

// Compresser обрабатывает gzip сжатие. gzip.Writer переиспользуются через пул.
func Compresser() gin.HandlerFunc {
	writers := pool.New(func() *gzipWriter {
		return &gzipWriter{writer: gzip.NewWriter(io.Discard)}
	})

	return func(c *gin.Context) {
		// 1. Распаковка входящего запроса
		if strings.Contains(strings.ToLower(c.Request.Header.Get("Content-Encoding")), "gzip") {
			newReader, err := gzip.NewReader(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid gzip body"})
				return
			}
			c.Request.Body = newReader
			defer newReader.Close()
		}

		// 2. Подготовка сжатия ответа
		if strings.Contains(strings.ToLower(c.Request.Header.Get("Accept-Encoding")), "gzip") {
			gzipResp := writers.Get()
			gzipResp.ResponseWriter = c.Writer
			c.Writer = gzipResp
			defer func() {
				gzipResp.Close()
				writers.Put(gzipResp)
			}()
		}

		c.Next()
	}
}
