package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ResponseData содержит информацию об HTTP-ответе: статус-код, размер
// тела и заголовки кодирования, существенные для фильтра сжатия.
type ResponseData struct {
	statusCode          int
	respSizeB           int
	respContentType     string
	respContentEncoding string
}

// LoggingResponseWriter расширяет ResponseWriter и накапливает данные
// об ответе для последующей записи в лог.
type LoggingResponseWriter struct {
	http.ResponseWriter
	rd *ResponseData
}

// NewLoggingResponseWriter оборачивает стандартный ResponseWriter
// и связывает его с объектом ResponseData.
func NewLoggingResponseWriter(rw http.ResponseWriter, rd *ResponseData) *LoggingResponseWriter {
	return &LoggingResponseWriter{ResponseWriter: rw, rd: rd}
}

// Write записывает данные в ResponseWriter и обновляет размер ответа
// и кодировку контента.
func (r *LoggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.rd.respSizeB += size
	r.rd.respContentEncoding = r.Header().Get("Content-Encoding")
	return size, err
}

// WriteHeader записывает статус-код и обновляет данные об ответе.
func (r *LoggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.rd.respContentType = r.ResponseWriter.Header().Get("Content-Type")
	r.rd.statusCode = statusCode
}

// WithLogging возвращает middleware, логирующий запрос и ответ вместе
// с заголовками согласования сжатия и временем обработки.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		Log.Info("Got request",
			zap.String("URI", r.URL.Path),
			zap.String("Method", r.Method),
			zap.String("Content-Type", r.Header.Get("Content-Type")),
			zap.String("Content-Encoding", r.Header.Get("Content-Encoding")),
			zap.String("Accept-Encoding", r.Header.Get("Accept-Encoding")),
		)

		respData := &ResponseData{}
		lw := NewLoggingResponseWriter(rw, respData)

		next.ServeHTTP(lw, r)
		Log.Info("Sending response",
			zap.Int("Status", respData.statusCode),
			zap.Int("Response Size", respData.respSizeB),
			zap.String("Content-Type", respData.respContentType),
			zap.String("Content-Encoding", respData.respContentEncoding),
		)
		Log.Info("Time spent processing request",
			zap.Any("Time spent", time.Since(start)),
		)
	})
}
