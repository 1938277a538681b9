package compress

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/logger"
	"go.uber.org/zap"
)

// Config описывает настройки фильтра. Для каждой оси может быть задан
// либо список включения, либо список исключения, но не оба сразу.
type Config struct {
	// Threshold — количество байт ответа, накапливаемых до принятия
	// решения о сжатии. 0 — решение принимается на первой записи.
	Threshold int
	// Level — уровень сжатия от 1 до 9 либо DefaultCompressionLevel.
	Level int
	// StatsEnabled включает сбор статистики.
	StatsEnabled bool

	IncludePathPatterns      []string
	ExcludePathPatterns      []string
	IncludeUserAgentPatterns []string
	ExcludeUserAgentPatterns []string
	// NoVaryUserAgentPatterns — клиенты, которым не отправляется
	// заголовок Vary. Ось независима от правил сжатия по User-Agent.
	NoVaryUserAgentPatterns []string
	IncludeContentTypes     []string
	ExcludeContentTypes     []string
}

// Filter согласует сжатие ответов и распаковку запросов.
// Один экземпляр обслуживает произвольное число параллельных циклов:
// всё изменяемое состояние цикла живет в обертках запроса и ответа.
type Filter struct {
	threshold int
	level     int
	registry  *Registry

	pathRules patternRules
	uaRules   patternRules
	varyRules patternRules
	ctRules   contentTypeRules

	stats *Stats
}

// NewFilter создает фильтр. Конфликтующие правила и уровень сжатия вне
// диапазона — ошибка инициализации, а не времени обработки запроса.
// Нулевой reg означает общий реестр DefaultRegistry.
func NewFilter(cfg Config, reg *Registry) (*Filter, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, cfg.Threshold)
	}
	if cfg.Level != DefaultCompressionLevel && (cfg.Level < 1 || cfg.Level > 9) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, cfg.Level)
	}

	pathRules, err := newPatternRules(cfg.IncludePathPatterns, cfg.ExcludePathPatterns)
	if err != nil {
		return nil, fmt.Errorf("path rules: %w", err)
	}
	uaRules, err := newPatternRules(cfg.IncludeUserAgentPatterns, cfg.ExcludeUserAgentPatterns)
	if err != nil {
		return nil, fmt.Errorf("user-agent rules: %w", err)
	}
	varyRules, err := newPatternRules(nil, cfg.NoVaryUserAgentPatterns)
	if err != nil {
		return nil, fmt.Errorf("no-vary rules: %w", err)
	}
	ctRules, err := newContentTypeRules(cfg.IncludeContentTypes, cfg.ExcludeContentTypes)
	if err != nil {
		return nil, fmt.Errorf("content-type rules: %w", err)
	}

	return &Filter{
		threshold: cfg.Threshold,
		level:     cfg.Level,
		registry:  reg,
		pathRules: pathRules,
		uaRules:   uaRules,
		varyRules: varyRules,
		ctRules:   ctRules,
		stats:     newStats(cfg.StatsEnabled),
	}, nil
}

type ctxKey int

const (
	forcedEncodingKey ctxKey = iota
	appliedKey
	markerKey
)

// cycleMarker — отметка одного цикла запрос/ответ.
type cycleMarker struct {
	compressed bool
}

// WithForcedEncoding возвращает запрос с принудительно выбранной
// кодировкой ответа. Устанавливается до прохождения фильтра;
// значение "identity" полностью отключает сжатие.
func WithForcedEncoding(r *http.Request, token string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), forcedEncodingKey, token))
}

// ForcedEncoding возвращает принудительную кодировку запроса, если задана.
func ForcedEncoding(r *http.Request) string {
	token, _ := r.Context().Value(forcedEncodingKey).(string)
	return token
}

// Compressed сообщает, было ли к ответу текущего цикла применено сжатие.
// Значение достоверно после фиксации решения (для обработчика — после
// первой записи за порогом, для внешнего кода — после завершения цикла).
func Compressed(r *http.Request) bool {
	marker, _ := r.Context().Value(markerKey).(*cycleMarker)
	return marker != nil && marker.compressed
}

func alreadyApplied(r *http.Request) bool {
	applied, _ := r.Context().Value(appliedKey).(bool)
	return applied
}

// Stats возвращает моментальный срез счетчиков фильтра.
func (f *Filter) Stats() Snapshot {
	return f.stats.Snapshot()
}

// Handler возвращает middleware, устанавливающий обертки сжатия вокруг
// обработчика next. Повторное прохождение фильтра в рамках одного
// цикла — no-op без сжатия.
func (f *Filter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if alreadyApplied(r) {
			logger.Log.Debug("compression filter already applied")
			next.ServeHTTP(rw, r)
			return
		}
		start := time.Now()
		marker := &cycleMarker{}
		ctx := context.WithValue(r.Context(), appliedKey, true)
		ctx = context.WithValue(ctx, markerKey, marker)
		r = r.WithContext(ctx)

		if dr := f.wrapRequest(r); dr != nil {
			r.Body = dr
			defer func() {
				if err := dr.Close(); err != nil {
					logger.Log.Debug("can not close request body", zap.Error(err))
				}
			}()
			f.stats.addRequestDecompressed()
		} else {
			f.stats.addRequestNotDecompressed()
		}

		cw := f.wrapResponse(rw, r, marker)
		if cw == nil {
			next.ServeHTTP(rw, r)
			f.stats.addResponseNotCompressed()
			f.stats.addHandlingTime(time.Since(start))
			return
		}

		next.ServeHTTP(cw, r)
		// Закрытие фиксирует решение и освобождает кодек на любом пути
		// выхода; ошибку финализации исправить уже нельзя — поток мог
		// быть частично отдан клиенту.
		if err := cw.Close(); err != nil {
			logger.Log.Debug("response finalization", zap.Error(err))
		}
		if cw.compressed() {
			f.stats.addResponseCompressed(cw.bytesIn, cw.bytesOut())
		} else {
			f.stats.addResponseNotCompressed()
		}
		f.stats.addHandlingTime(time.Since(start))
	})
}

// wrapRequest возвращает распаковывающую обертку тела запроса либо nil.
// Неподдерживаемый или неизвестный Content-Encoding не является ошибкой:
// тело передается дальше как есть.
func (f *Filter) wrapRequest(r *http.Request) *decompressReader {
	token := r.Header.Get("Content-Encoding")
	if token == "" || strings.EqualFold(token, IdentityEncoding) {
		return nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	codec, err := f.registry.Resolve(token)
	if err != nil {
		logger.Log.Debug("can not decompress request",
			zap.String("encoding", token))
		return nil
	}
	return newDecompressReader(r.Body, codec)
}

// wrapResponse применяет политику согласования в два этапа: сначала
// пригодность ответа к сжатию (путь, User-Agent), затем выбор кодировки.
// Vary отправляется сразу после подтверждения пригодности: заголовок
// отражает "ответ может зависеть от Accept-Encoding", а не "ответ сжат".
func (f *Filter) wrapResponse(rw http.ResponseWriter, r *http.Request, marker *cycleMarker) *compressWriter {
	if r.Method == http.MethodHead {
		return nil
	}
	if !f.pathRules.pass(r.URL.Path) {
		logger.Log.Debug("compression disabled for path",
			zap.String("path", r.URL.Path))
		return nil
	}
	ua := r.Header.Get("User-Agent")
	if !f.uaRules.pass(ua) {
		logger.Log.Debug("compression disabled for user-agent",
			zap.String("user-agent", ua))
		return nil
	}

	if f.varyRules.pass(ua) {
		rw.Header().Add("Vary", "Accept-Encoding")
	}

	token := f.registry.BestMatch(r.Header.Get("Accept-Encoding"), ForcedEncoding(r))
	if token == IdentityEncoding {
		logger.Log.Debug("compression not supported or declined by request")
		return nil
	}
	codec, err := f.registry.Resolve(token)
	if err != nil {
		return nil
	}
	return newCompressWriter(rw, codec, token, f.level, f.threshold, f.ctRules, marker)
}
