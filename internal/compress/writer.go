package compress

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Fuonder/zipfilter.git/internal/logger"
	"go.uber.org/zap"
)

// responseState — фаза жизненного цикла одного цикла ответа.
type responseState int

const (
	stateUndecided responseState = iota
	statePassthrough
	stateCompressing
	stateClosed
)

// compressWriter — обертка над http.ResponseWriter с отложенным решением о сжатии.
// Пока решение не принято, байты обработчика копятся во внутреннем буфере,
// а записанный статус-код запоминается. Решение принимается ровно один раз:
// при достижении порога, при явном Flush, при закрытии потока или когда
// обработчик выставил заголовок, запрещающий преобразование. До точки
// фиксации в нижележащий ResponseWriter не уходит ни одного байта и ни
// одного заголовка.
type compressWriter struct {
	rw        http.ResponseWriter
	codec     Codec
	token     string
	level     int
	threshold int
	ctRules   contentTypeRules
	marker    *cycleMarker

	state   responseState
	code    int
	buf     []byte
	cw      io.WriteCloser
	out     *countingWriter
	bytesIn int64
}

func newCompressWriter(rw http.ResponseWriter,
	codec Codec,
	token string,
	level int,
	threshold int,
	ctRules contentTypeRules,
	marker *cycleMarker) *compressWriter {
	return &compressWriter{
		rw:        rw,
		codec:     codec,
		token:     token,
		level:     level,
		threshold: threshold,
		ctRules:   ctRules,
		marker:    marker,
	}
}

// countingWriter считает байты, ушедшие в нижележащий поток.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Header возвращает заголовки HTTP-ответа.
func (c *compressWriter) Header() http.Header {
	return c.rw.Header()
}

// WriteHeader запоминает статус-код до точки фиксации.
// Информационные статусы 1xx пробрасываются сразу. После фиксации
// повторные вызовы игнорируются: заголовки уже отданы.
func (c *compressWriter) WriteHeader(statusCode int) {
	if statusCode >= 100 && statusCode <= 199 {
		c.rw.WriteHeader(statusCode)
		return
	}
	if c.state == stateUndecided && c.code == 0 {
		c.code = statusCode
	}
}

// Write накапливает данные до порога, после фиксации решения направляет
// их либо в кодек, либо напрямую в нижележащий поток.
func (c *compressWriter) Write(p []byte) (int, error) {
	switch c.state {
	case stateCompressing:
		c.bytesIn += int64(len(p))
		return c.cw.Write(p)
	case statePassthrough:
		return c.rw.Write(p)
	case stateClosed:
		return 0, ErrStreamClosed
	}

	c.buf = append(c.buf, p...)
	if c.forbidden() {
		if err := c.startPassthrough(false); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if len(c.buf) >= c.threshold {
		if err := c.decide(false); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// forbidden проверяет заголовки, уже выставленные обработчиком,
// которые исключают сжатие независимо от размера тела.
func (c *compressWriter) forbidden() bool {
	hdr := c.rw.Header()
	if hasNoTransform(hdr.Get("Cache-Control")) {
		return true
	}
	if hdr.Get("Content-Encoding") != "" || hdr.Get("Content-Range") != "" {
		return true
	}
	if !bodyAllowedForStatus(c.code) {
		return true
	}
	return false
}

// decide фиксирует решение сжимать/не сжимать. final=true означает,
// что поток закрывается и полное тело ответа уже известно.
func (c *compressWriter) decide(final bool) error {
	if c.state != stateUndecided {
		return nil
	}
	if c.forbidden() {
		return c.startPassthrough(final)
	}
	if !c.ctRules.pass(c.rw.Header().Get("Content-Type")) {
		return c.startPassthrough(final)
	}
	if final && len(c.buf) < c.threshold {
		return c.startPassthrough(final)
	}
	return c.startCompressing(final)
}

// startPassthrough переводит поток в режим прямой передачи:
// буфер и все последующие байты уходят без изменений. Если полный
// размер тела известен (буферизация ни разу не переполнялась),
// Content-Length выставляется точно.
func (c *compressWriter) startPassthrough(final bool) error {
	c.state = statePassthrough
	hdr := c.rw.Header()
	if final && hdr.Get("Content-Length") == "" && bodyAllowedForStatus(c.code) {
		hdr.Set("Content-Length", strconv.Itoa(len(c.buf)))
	}
	c.writeHeaderNow()
	if len(c.buf) == 0 {
		c.buf = nil
		return nil
	}
	n, err := c.rw.Write(c.buf)
	if err == nil && n < len(c.buf) {
		err = io.ErrShortWrite
	}
	c.buf = nil
	return err
}

// startCompressing переводит поток в режим сжатия: выставляет
// Content-Encoding, убирает Content-Length (итоговый размер заранее
// неизвестен), помечает ETag от несжатого варианта и прогоняет
// накопленный буфер через кодек.
func (c *compressWriter) startCompressing(final bool) error {
	c.out = &countingWriter{w: c.rw}
	cw, err := c.codec.NewCompressor(c.out, c.level)
	if err != nil {
		logger.Log.Debug("can not init compressor, falling back to passthrough",
			zap.String("encoding", c.token),
			zap.Error(err))
		c.out = nil
		return c.startPassthrough(final)
	}

	hdr := c.rw.Header()
	hdr.Set("Content-Encoding", c.token)
	hdr.Del("Content-Length")
	if etag := hdr.Get("ETag"); etag != "" {
		hdr.Set("ETag", suffixETag(etag, c.token))
	}

	c.state = stateCompressing
	c.cw = cw
	if c.marker != nil {
		c.marker.compressed = true
	}
	c.writeHeaderNow()

	if len(c.buf) > 0 {
		c.bytesIn += int64(len(c.buf))
		n, err := c.cw.Write(c.buf)
		if err == nil && n < len(c.buf) {
			err = io.ErrShortWrite
		}
		c.buf = nil
		return err
	}
	c.buf = nil
	return nil
}

func (c *compressWriter) writeHeaderNow() {
	if c.code != 0 {
		c.rw.WriteHeader(c.code)
		c.code = 0
	}
}

// Flush фиксирует решение, если оно еще не принято: поток с неизвестным
// полным размером принудительно уходит в сжатие, если заголовки его не
// запрещают. Затем сбрасываются кодек и нижележащий поток.
func (c *compressWriter) Flush() {
	if c.state == stateUndecided {
		if err := c.decide(false); err != nil {
			logger.Log.Debug("flush decision failed", zap.Error(err))
			return
		}
	}
	if c.state == stateCompressing {
		if fl, ok := c.cw.(interface{ Flush() error }); ok {
			if err := fl.Flush(); err != nil {
				logger.Log.Debug("can not flush compressor", zap.Error(err))
			}
		}
	}
	if fl, ok := c.rw.(http.Flusher); ok {
		fl.Flush()
	}
}

// Close завершает цикл ответа. На пути UNDECIDED->CLOSED правила по
// Content-Type и заголовкам оцениваются ровно один раз, после чего
// буфер отдается выбранным способом. Повторные вызовы не имеют эффекта.
func (c *compressWriter) Close() error {
	if c.state == stateClosed {
		return nil
	}
	if c.state == stateUndecided {
		if err := c.decide(true); err != nil {
			c.state = stateClosed
			return err
		}
	}
	var err error
	if c.state == stateCompressing && c.cw != nil {
		err = c.cw.Close()
		c.cw = nil
	}
	c.state = stateClosed
	return err
}

// compressed сообщает, был ли ответ сжат.
func (c *compressWriter) compressed() bool {
	return c.marker != nil && c.marker.compressed
}

// bytesOut возвращает количество байт, отданных после сжатия.
func (c *compressWriter) bytesOut() int64 {
	if c.out == nil {
		return 0
	}
	return c.out.n
}

// suffixETag вставляет "-<token>" перед закрывающей кавычкой ETag,
// чтобы кэши различали сжатый и несжатый варианты сущности.
func suffixETag(etag string, token string) string {
	insert := strings.LastIndex(etag, `"`)
	if insert == -1 {
		return etag + "-" + token
	}
	return etag[:insert] + "-" + token + etag[insert:]
}

// bodyAllowedForStatus сообщает, допускает ли статус-код тело ответа
// (RFC 7230, раздел 3.3). Нулевой код означает еще не записанный 200.
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == 204:
		return false
	case status == 304:
		return false
	}
	return true
}
