package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestMatch(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name           string
		acceptEncoding string
		expected       string
	}{
		{"EmptyHeader", "", IdentityEncoding},
		{"SingleGzip", "gzip", "gzip"},
		{"HigherQualityWins", "gzip;q=0.5, deflate;q=0.8", "deflate"},
		{"EqualQualityPrefersGzip", "deflate, gzip", "gzip"},
		{"XGzipBeforeDeflate", "deflate, x-gzip", "x-gzip"},
		{"ZeroQualityExcludes", "gzip;q=0, deflate", "deflate"},
		{"AllZero", "gzip;q=0, deflate;q=0, zstd;q=0", IdentityEncoding},
		{"Wildcard", "*", "gzip"},
		{"WildcardExceptGzip", "*, gzip;q=0", "x-gzip"},
		{"IdentityOnly", "identity", IdentityEncoding},
		{"UnknownToken", "br", IdentityEncoding},
		{"ClampedQuality", "zstd;q=7, gzip;q=0.9", "zstd"},
		{"MalformedQualityDropsCoding", "gzip;q=abc", IdentityEncoding},
		{"MalformedCodingSkipped", "gzip;q=abc, deflate", "deflate"},
		{"WhitespaceAndCase", " GZIP ; q=0.4 , ZSTD ; q=0.3 ", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, reg.BestMatch(tt.acceptEncoding, ""))
		})
	}
}

func TestBestMatchForced(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name     string
		forced   string
		expected string
	}{
		{"ForcedGzip", "gzip", "gzip"},
		{"ForcedZstd", "zstd", "zstd"},
		{"ForcedIdentity", "identity", IdentityEncoding},
		{"ForcedUnsupported", "compress", IdentityEncoding},
		{"ForcedCaseInsensitive", "GZIP", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Принудительный токен игнорирует Accept-Encoding клиента.
			require.Equal(t, tt.expected, reg.BestMatch("deflate", tt.forced))
		})
	}
}

func TestBestMatchRegisteredCodec(t *testing.T) {
	reg := NewRegistry()
	stream, err := reg.Resolve("gzip")
	require.NoError(t, err)
	reg.Register("br", stream)

	tests := []struct {
		name           string
		acceptEncoding string
		expected       string
	}{
		{"ExplicitToken", "br", "br"},
		{"WildcardCoversRegistered", "*, gzip;q=0, x-gzip;q=0, deflate;q=0, zstd;q=0", "br"},
		{"PreferenceOrderWinsTies", "br, gzip", "gzip"},
		{"HigherQualityStillWins", "br;q=0.9, gzip;q=0.5", "br"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, reg.BestMatch(tt.acceptEncoding, ""))
		})
	}
}

func TestParseAcceptEncoding(t *testing.T) {
	accepted := parseAcceptEncoding("gzip;q=0.5, deflate, zstd;q=0")
	require.Len(t, accepted, 3)
	require.Equal(t, acceptedEncoding{token: "gzip", q: 0.5}, accepted[0])
	require.Equal(t, acceptedEncoding{token: "deflate", q: 1.0}, accepted[1])
	require.Equal(t, acceptedEncoding{token: "zstd", q: 0}, accepted[2])
}
