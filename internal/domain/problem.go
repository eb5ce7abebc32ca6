package domain

// Language is the canonical name of a supported programming language.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangCpp        Language = "c++"
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangC          Language = "c"
)

// Difficulty is a problem's difficulty tier.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyHard      Difficulty = "hard"
	DifficultySuperHard Difficulty = "super-hard"
)

// CodeFragments holds the per-language code pieces of a problem. Header and
// Driver are hidden from the user; Starter is what the editor is seeded with.
type CodeFragments struct {
	Starter string `json:"starter"`
	Header  string `json:"-"`
	Driver  string `json:"-"`
}

// TestCase is a single input/expected-output pair.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Problem is the slice of a problem record the judging pipeline consumes.
type Problem struct {
	ID           string                     `json:"id"`
	Title        string                     `json:"title"`
	Difficulty   Difficulty                 `json:"difficulty"`
	Acceptance   int                        `json:"acceptance"`
	Code         map[Language]CodeFragments `json:"code"`
	VisibleTests []TestCase                 `json:"visibleTests"`
	HiddenTests  []TestCase                 `json:"-"`
}
