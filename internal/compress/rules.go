package compress

import (
	"fmt"
	"regexp"
	"strings"
)

// patternRules — набор регулярных выражений для одной оси фильтрации
// (путь запроса или User-Agent). Настраивается либо как список включения,
// либо как список исключения; одновременно — ошибка конфигурации.
type patternRules struct {
	patterns []*regexp.Regexp
	include  bool
}

func newPatternRules(include []string, exclude []string) (patternRules, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return patternRules{}, ErrRuleConflict
	}
	rules := patternRules{}
	exprs := exclude
	if len(include) > 0 {
		exprs = include
		rules.include = true
	}
	for _, expr := range exprs {
		// Выражение должно покрывать значение целиком, частичное
		// совпадение не считается.
		re, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return patternRules{}, fmt.Errorf("pattern %q: %w", expr, err)
		}
		rules.patterns = append(rules.patterns, re)
	}
	return rules, nil
}

// pass сообщает, пропускает ли ось значение value.
// Отсутствие настроенных правил пропускает все.
func (p patternRules) pass(value string) bool {
	if value != "" {
		for _, re := range p.patterns {
			if re.MatchString(value) {
				return p.include
			}
		}
	}
	return !p.include
}

// contentTypeRules — include/exclude-список media type для фильтрации
// по Content-Type ответа. Параметры вида "; charset=..." игнорируются.
type contentTypeRules struct {
	types   map[string]struct{}
	include bool
}

func newContentTypeRules(include []string, exclude []string) (contentTypeRules, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return contentTypeRules{}, ErrRuleConflict
	}
	rules := contentTypeRules{types: make(map[string]struct{})}
	listed := exclude
	if len(include) > 0 {
		listed = include
		rules.include = true
	}
	for _, ct := range listed {
		rules.types[mediaType(ct)] = struct{}{}
	}
	return rules, nil
}

func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func (c contentTypeRules) pass(ct string) bool {
	if len(c.types) == 0 {
		return true
	}
	if _, ok := c.types[mediaType(ct)]; ok {
		return c.include
	}
	return !c.include
}

// hasNoTransform сообщает, содержит ли значение Cache-Control
// директиву no-transform.
func hasNoTransform(cacheControl string) bool {
	for _, directive := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-transform") {
			return true
		}
	}
	return false
}
