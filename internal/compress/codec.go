// Package compress реализует прослойку согласования сжатия для HTTP-запросов и ответов.
// Фильтр выбирает алгоритм кодирования по заголовкам клиента и настроенным правилам,
// откладывает решение "сжимать или нет" до накопления порогового объема данных
// и прозрачно распаковывает сжатые тела входящих запросов.
package compress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// IdentityEncoding — токен "identity": данные передаются без преобразования.
// Всегда допустим при согласовании.
const IdentityEncoding = "identity"

// DefaultCompressionLevel — уровень сжатия по умолчанию для кодеков,
// которые его поддерживают.
const DefaultCompressionLevel = -1

// Codec связывает токен Content-Encoding с конструкторами сжимающего
// и распаковывающего потоков.
type Codec struct {
	// NewCompressor возвращает поток, сжимающий записываемые данные в w.
	NewCompressor func(w io.Writer, level int) (io.WriteCloser, error)
	// NewDecompressor возвращает поток, распаковывающий данные из r.
	NewDecompressor func(r io.Reader) (io.ReadCloser, error)
}

// preferenceOrder — фиксированный порядок предпочтения кодировок
// при равных весах q в Accept-Encoding.
var preferenceOrder = []string{"gzip", "x-gzip", "deflate", "zstd", "compress", "x-compress"}

// Registry хранит известные кодеки по токенам Content-Encoding.
// После инициализации используется только на чтение.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry создает реестр со стандартным набором кодеков:
// gzip, x-gzip, deflate (zlib-поток) и zstd.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}

	gzipCodec := Codec{
		NewCompressor: func(w io.Writer, level int) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, level)
		},
		NewDecompressor: func(rd io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(rd)
		},
	}
	r.Register("gzip", gzipCodec)
	r.Register("x-gzip", gzipCodec)

	r.Register("deflate", Codec{
		NewCompressor: func(w io.Writer, level int) (io.WriteCloser, error) {
			return zlib.NewWriterLevel(w, level)
		},
		NewDecompressor: func(rd io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(rd)
		},
	})

	r.Register("zstd", Codec{
		NewCompressor: func(w io.Writer, level int) (io.WriteCloser, error) {
			opt := zstd.WithEncoderLevel(zstd.SpeedDefault)
			if level >= 1 {
				opt = zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))
			}
			return zstd.NewWriter(w, opt)
		},
		NewDecompressor: func(rd io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(rd)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		},
	})

	return r
}

// Register добавляет или заменяет кодек для токена.
// Вызывается до начала обработки запросов.
func (r *Registry) Register(token string, c Codec) {
	r.codecs[strings.ToLower(token)] = c
}

// Resolve возвращает кодек по токену. Сравнение регистронезависимое.
// Для "identity" и неизвестных токенов возвращает ErrUnsupportedEncoding.
func (r *Registry) Resolve(token string) (Codec, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	c, ok := r.codecs[token]
	if !ok {
		return Codec{}, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, token)
	}
	return c, nil
}

// Supported сообщает, зарегистрирован ли кодек для токена.
func (r *Registry) Supported(token string) bool {
	_, ok := r.codecs[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

// candidates возвращает все зарегистрированные токены в порядке
// предпочтения: сначала известные из preferenceOrder, затем
// добавленные через Register — по алфавиту.
func (r *Registry) candidates() []string {
	listed := make(map[string]bool, len(preferenceOrder))
	tokens := make([]string, 0, len(r.codecs))
	for _, token := range preferenceOrder {
		if r.Supported(token) {
			tokens = append(tokens, token)
			listed[token] = true
		}
	}
	extra := make([]string, 0, len(r.codecs))
	for token := range r.codecs {
		if !listed[token] {
			extra = append(extra, token)
		}
	}
	sort.Strings(extra)
	return append(tokens, extra...)
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry возвращает общий для процесса реестр кодеков.
// Инициализируется один раз при первом обращении.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
