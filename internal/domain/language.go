package domain

// Language identifies the language a card teaches.
type Language string

const (
	English           Language = "eng"
	Japanese          Language = "jpn"
	ChineseSimplified Language = "chi_sim"
)

// LanguageTag is the validator "oneof" list for Language fields.
const LanguageTag = "eng jpn chi_sim"

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	switch l {
	case English, Japanese, ChineseSimplified:
		return true
	}
	return false
}
