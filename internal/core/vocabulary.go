package core

import "strings"

// WholeCategory is the selection label meaning "every category of the type".
const WholeCategory = "전체"

// Vocabulary is the allowed category list per transaction type. It is shared
// configuration: built once and handed to everything that needs it.
type Vocabulary map[TxType][]string

// DefaultVocabulary returns the built-in category lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Expense: {"식비", "교통", "생활/쇼핑", "문화/여가", "건강/의료", "경조사/모임", "교육/자기개발", "기타"},
		Income:  {"근로 소득", "부가 소득", "금융 소득", "기타 소득"},
	}
}

// Categories returns a copy of the list for t.
func (v Vocabulary) Categories(t TxType) []string {
	return append([]string(nil), v[t]...)
}

// Allows reports whether category belongs to the list for t. An empty
// vocabulary allows everything.
func (v Vocabulary) Allows(t TxType, category string) bool {
	if len(v) == 0 {
		return true
	}
	for _, c := range v[t] {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizeGoalCategory maps a blank or "whole" selection to the empty
// category used for whole-type goals.
func NormalizeGoalCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" || category == WholeCategory || strings.EqualFold(category, "all") {
		return ""
	}
	return category
}
