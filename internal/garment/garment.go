// Package garment guesses the main clothing type mentioned in an analysis.
package garment

import (
	"strings"
	"unicode/utf8"
)

// Class is a garment type with its Russian display name.
type Class struct {
	Name   string
	NameRu string
}

// Fallback is returned when no keyword matches.
var Fallback = Class{Name: "clothing", NameRu: "Одежда"}

type rule struct {
	class Class
	// stems match at the start of a word, covering inflected forms.
	stems []string
	// words must match a whole word.
	words []string
}

// Order matters: the first matching rule wins, so "shirt" sits after "t-shirt".
var rules = []rule{
	{Class{"dress", "Платье"}, []string{"платье", "платья", "dress"}, nil},
	{Class{"tshirt", "Футболка"}, []string{"футболк", "t-shirt", "tshirt"}, []string{"tee", "tees"}},
	{Class{"shirt", "Рубашка"}, []string{"рубашк", "shirt"}, nil},
	{Class{"pants", "Брюки"}, []string{"брюки", "брюк", "pants", "trousers"}, nil},
	{Class{"jeans", "Джинсы"}, []string{"джинс", "jeans", "denim"}, nil},
	{Class{"jacket", "Куртка"}, []string{"куртк", "jacket"}, nil},
	{Class{"blazer", "Пиджак"}, []string{"пиджак", "blazer"}, nil},
	{Class{"sweater", "Свитер"}, []string{"свитер", "sweater", "jumper", "pullover"}, nil},
	{Class{"cardigan", "Кардиган"}, []string{"кардиган", "cardigan"}, nil},
	{Class{"skirt", "Юбка"}, []string{"юбк", "skirt"}, nil},
	{Class{"blouse", "Блузка"}, []string{"блузк", "blouse"}, nil},
	{Class{"coat", "Пальто"}, []string{"пальто", "coat", "overcoat", "raincoat", "topcoat", "trenchcoat"}, nil},
}

// Classify returns the first garment class whose keyword occurs in text.
func Classify(text string) Class {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.stems {
			if containsWord(lower, kw, false) {
				return r.class
			}
		}
		for _, kw := range r.words {
			if containsWord(lower, kw, true) {
				return r.class
			}
		}
	}
	return Fallback
}

// containsWord reports whether kw starts a word in s, so "shirt" misses
// "undershirt" but "футболк" still matches "футболку". With whole set the
// word must also end where kw ends: "tee" misses "teenager".
func containsWord(s, kw string, whole bool) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(kw)
		if i == 0 || !isLetter(lastRune(s[:i])) {
			if !whole || end == len(s) || !isLetter(firstRune(s[end:])) {
				return true
			}
		}
		from = end
	}
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func isLetter(r rune) bool {
	return r == '-' || (r >= 'a' && r <= 'z') || (r >= 'а' && r <= 'я') || r == 'ё'
}
