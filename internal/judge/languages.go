package judge

import (
	"fmt"
	"strings"

	"github.com/arena-oj/arena/internal/domain"
)

// LanguageInfo describes a supported language and its judge environment.
type LanguageInfo struct {
	Name     domain.Language `json:"name"`
	JudgeID  int             `json:"judgeId"`
	Version  string          `json:"version"`
	Compiler string          `json:"compiler,omitempty"`
}

var registry = []LanguageInfo{
	{Name: domain.LangJavaScript, JudgeID: 63, Version: "Node.js 12.14.0"},
	{Name: domain.LangCpp, JudgeID: 54, Version: "C++17", Compiler: "GCC 9.2.0"},
	{Name: domain.LangJava, JudgeID: 62, Version: "OpenJDK 13.0.1"},
	{Name: domain.LangPython, JudgeID: 71, Version: "3.8.1"},
	{Name: domain.LangC, JudgeID: 50, Version: "C11", Compiler: "GCC 9.2.0"},
}

// aliases maps accepted spellings onto canonical names.
var aliases = map[string]domain.Language{
	"javascript": domain.LangJavaScript,
	"js":         domain.LangJavaScript,
	"c++":        domain.LangCpp,
	"cpp":        domain.LangCpp,
	"java":       domain.LangJava,
	"python":     domain.LangPython,
	"c":          domain.LangC,
}

// Resolve looks a language up by name, case-insensitively.
func Resolve(name string) (LanguageInfo, error) {
	lang, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return LanguageInfo{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, name)
	}
	for _, info := range registry {
		if info.Name == lang {
			return info, nil
		}
	}
	return LanguageInfo{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, name)
}

// Languages returns every supported language.
func Languages() []LanguageInfo {
	out := make([]LanguageInfo, len(registry))
	copy(out, registry)
	return out
}
