package compress

import (
	"strconv"
	"strings"
)

// defaultQValue — вес кодировки, если q не указан явно.
const defaultQValue = 1.0

type acceptedEncoding struct {
	token string
	q     float64
}

// parseAcceptEncoding разбирает значение заголовка Accept-Encoding:
// токены через запятую с необязательным весом ";q=". Некорректные
// элементы пропускаются.
func parseAcceptEncoding(header string) []acceptedEncoding {
	parts := strings.Split(header, ",")
	accepted := make([]acceptedEncoding, 0, len(parts))
	for _, part := range parts {
		token, q, ok := parseCoding(part)
		if !ok {
			continue
		}
		accepted = append(accepted, acceptedEncoding{token: token, q: q})
	}
	return accepted
}

func parseCoding(s string) (token string, q float64, ok bool) {
	q = defaultQValue
	for i, field := range strings.Split(s, ";") {
		field = strings.TrimSpace(field)
		if i == 0 {
			token = strings.ToLower(field)
			continue
		}
		if value, found := strings.CutPrefix(field, "q="); found {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				// нечитаемый вес отбрасывает весь элемент
				return "", 0, false
			}
			if parsed < 0 {
				parsed = 0
			} else if parsed > 1 {
				parsed = 1
			}
			q = parsed
		}
	}
	return token, q, token != ""
}

// BestMatch выбирает кодировку ответа по заголовку Accept-Encoding.
// Принудительный токен forced побеждает всегда: неподдерживаемое
// принудительное значение деградирует до identity. Токены с q=0
// исключаются, "*" покрывает любой зарегистрированный кодек, включая
// добавленные через Register. Равные веса разрешаются порядком
// кандидатов из candidates.
// Если приемлемых кодировок не осталось — возвращается identity.
func (r *Registry) BestMatch(acceptEncoding string, forced string) string {
	if forced != "" {
		forced = strings.ToLower(strings.TrimSpace(forced))
		if forced == IdentityEncoding || r.Supported(forced) {
			return forced
		}
		return IdentityEncoding
	}

	if strings.TrimSpace(acceptEncoding) == "" {
		return IdentityEncoding
	}

	explicit := make(map[string]float64)
	wildcard := -1.0
	for _, a := range parseAcceptEncoding(acceptEncoding) {
		if a.token == "*" {
			wildcard = a.q
			continue
		}
		explicit[a.token] = a.q
	}

	best := IdentityEncoding
	bestQ := 0.0
	for _, token := range r.candidates() {
		q, ok := explicit[token]
		if !ok {
			if wildcard < 0 {
				continue
			}
			q = wildcard
		}
		if q <= 0 {
			continue
		}
		if q > bestQ {
			best = token
			bestQ = q
		}
	}
	return best
}
