// Package source builds complete, compilable programs out of a problem's
// hidden harness fragments and the user's code.
package source

import (
	"fmt"
	"strings"

	"github.com/arena-oj/arena/internal/domain"
)

// Assemble returns header + user code + driver for the language, each trimmed.
// Empty fragments contribute nothing.
func Assemble(problem *domain.Problem, lang domain.Language, userCode string) (string, error) {
	frags, ok := problem.Code[lang]
	if !ok {
		return "", fmt.Errorf("%w: problem %s has no %s template", domain.ErrUnsupportedLanguage, problem.ID, lang)
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{frags.Header, userCode, frags.Driver} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n"), nil
}
