package compress

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(body)
}

func newTestRouter(t *testing.T, cfg Config) (*Filter, chi.Router) {
	t.Helper()
	filter, err := NewFilter(cfg, nil)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(filter.Handler)
	r.Post("/echo", echoHandler)
	r.Get("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("payload ", 200)))
	})
	r.Get("/small", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tiny"))
	})
	return filter, r
}

func TestFilterNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"Defaults", Config{Level: DefaultCompressionLevel}, nil},
		{"ExplicitLevel", Config{Level: 6}, nil},
		{"NegativeThreshold", Config{Threshold: -1, Level: DefaultCompressionLevel}, ErrInvalidThreshold},
		{"LevelTooHigh", Config{Level: 10}, ErrInvalidLevel},
		{"LevelZero", Config{Level: 0}, ErrInvalidLevel},
		{"PathRuleConflict", Config{
			Level:               DefaultCompressionLevel,
			IncludePathPatterns: []string{"/a"},
			ExcludePathPatterns: []string{"/b"},
		}, ErrRuleConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilter(tt.cfg, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFilterCompressesLargeResponse(t *testing.T) {
	_, router := newTestRouter(t, Config{Threshold: 64, Level: DefaultCompressionLevel})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Contains(t, rr.Header().Values("Vary"), "Accept-Encoding")
	require.Equal(t, []byte(strings.Repeat("payload ", 200)), gunzip(t, rr.Body.Bytes()))
}

func TestFilterSkipsSmallResponse(t *testing.T) {
	_, router := newTestRouter(t, Config{Threshold: 1024, Level: DefaultCompressionLevel})

	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Contains(t, rr.Header().Values("Vary"), "Accept-Encoding")
	require.Equal(t, "tiny", rr.Body.String())
}

func TestFilterWithoutAcceptEncoding(t *testing.T) {
	_, router := newTestRouter(t, Config{Threshold: 0, Level: DefaultCompressionLevel})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Del("Accept-Encoding")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Equal(t, strings.Repeat("payload ", 200), rr.Body.String())
}

func TestFilterDecompressesRequest(t *testing.T) {
	filter, router := newTestRouter(t, Config{Threshold: 1 << 20, Level: DefaultCompressionLevel, StatsEnabled: true})

	payload := []byte(`{"status":"ok"}`)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/echo", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, payload, rr.Body.Bytes())
	require.Equal(t, int64(1), filter.Stats().RequestsDecompressed)
}

func TestFilterUnknownRequestEncodingPassedAsIs(t *testing.T) {
	filter, router := newTestRouter(t, Config{Threshold: 1 << 20, Level: DefaultCompressionLevel, StatsEnabled: true})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("raw bytes"))
	req.Header.Set("Content-Encoding", "br")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "raw bytes", rr.Body.String())
	require.Equal(t, int64(1), filter.Stats().RequestsNotDecompressed)
}

func TestFilterPathRules(t *testing.T) {
	_, router := newTestRouter(t, Config{
		Threshold:           0,
		Level:               DefaultCompressionLevel,
		ExcludePathPatterns: []string{"/big"},
	})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Empty(t, rr.Header().Values("Vary"))
}

func TestFilterUserAgentRules(t *testing.T) {
	_, router := newTestRouter(t, Config{
		Threshold:                0,
		Level:                    DefaultCompressionLevel,
		ExcludeUserAgentPatterns: []string{".*MSIE 6.*"},
	})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", "Mozilla/4.0 (compatible; MSIE 6.0)")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Content-Encoding"))
}

func TestFilterNoVaryUserAgent(t *testing.T) {
	_, router := newTestRouter(t, Config{
		Threshold:               0,
		Level:                   DefaultCompressionLevel,
		NoVaryUserAgentPatterns: []string{"legacy-proxy/.*"},
	})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", "legacy-proxy/1.2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// Сжатие применяется, но Vary для этого клиента не отправляется.
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Empty(t, rr.Header().Values("Vary"))
}

func TestFilterHeadRequest(t *testing.T) {
	filter, err := NewFilter(Config{Threshold: 0, Level: DefaultCompressionLevel}, nil)
	require.NoError(t, err)

	handler := filter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "800")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodHead, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Equal(t, "800", rr.Header().Get("Content-Length"))
}

func TestFilterForcedEncoding(t *testing.T) {
	filter, err := NewFilter(Config{Threshold: 0, Level: DefaultCompressionLevel}, nil)
	require.NoError(t, err)

	handler := filter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("payload ", 100)))
	}))

	t.Run("ForcedZstdIgnoresAcceptEncoding", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "deflate")
		req = WithForcedEncoding(req, "zstd")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, "zstd", rr.Header().Get("Content-Encoding"))
	})

	t.Run("ForcedIdentityDisablesCompression", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		req = WithForcedEncoding(req, IdentityEncoding)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Empty(t, rr.Header().Get("Content-Encoding"))
	})
}

func TestFilterAppliedOnce(t *testing.T) {
	filter, err := NewFilter(Config{Threshold: 0, Level: DefaultCompressionLevel, StatsEnabled: true}, nil)
	require.NoError(t, err)

	var sawCompressed bool
	inner := filter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("payload ", 100)))
		sawCompressed = Compressed(r)
	}))
	outer := filter.Handler(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	outer.ServeHTTP(rr, req)

	// Второе прохождение фильтра не оборачивает ответ повторно.
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Equal(t, []byte(strings.Repeat("payload ", 100)), gunzip(t, rr.Body.Bytes()))
	require.True(t, sawCompressed)
	require.Equal(t, int64(1), filter.Stats().ResponsesCompressed)
}

func TestFilterStatsOutcomes(t *testing.T) {
	filter, router := newTestRouter(t, Config{Threshold: 64, Level: DefaultCompressionLevel, StatsEnabled: true})

	send := func(path string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
	}
	send("/big")
	send("/big")
	send("/small")

	snap := filter.Stats()
	require.Equal(t, int64(2), snap.ResponsesCompressed)
	require.Equal(t, int64(1), snap.ResponsesNotCompressed)
	require.Greater(t, snap.ResponseBytesIn, snap.ResponseBytesOut)
	require.Greater(t, snap.CompressionRatio, 0.0)
	require.Less(t, snap.CompressionRatio, 1.0)
}
