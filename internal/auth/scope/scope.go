package scope

import (
	"errors"
	"strings"
)

type Scope string

var ErrInvalidScope = errors.New("invalid_scope")

const (
	ReadFoods       Scope = "read:foods"
	WriteFoods      Scope = "write:foods"
	ReadCategories  Scope = "read:categories"
	WriteCategories Scope = "write:categories"
	ReadNutrients   Scope = "read:nutrients"
	WriteNutrients  Scope = "write:nutrients"
	ReadUsage       Scope = "read:usage"
	Admin           Scope = "admin"
)

var allScopes = []Scope{
	ReadFoods,
	WriteFoods,
	ReadCategories,
	WriteCategories,
	ReadNutrients,
	WriteNutrients,
	ReadUsage,
	Admin,
}

// defaultScopes are granted to OAuth clients created without an explicit list.
var defaultScopes = []Scope{ReadFoods, ReadCategories, ReadNutrients}

var validScopes = func() map[string]struct{} {
	lookup := make(map[string]struct{}, len(allScopes))
	for _, scope := range allScopes {
		lookup[string(scope)] = struct{}{}
	}
	return lookup
}()

func All() []string {
	return Strings(allScopes)
}

func Defaults() []string {
	return Strings(defaultScopes)
}

func Strings(scopes []Scope) []string {
	values := make([]string, len(scopes))
	for i, scope := range scopes {
		values[i] = string(scope)
	}
	return values
}

// Has reports whether granted contains required.
func Has(granted []string, required Scope) bool {
	requiredScope := normalize(string(required))
	if requiredScope == "" {
		return false
	}
	for _, scope := range granted {
		if normalize(scope) == requiredScope {
			return true
		}
	}
	return false
}

// HasAny reports whether granted satisfies at least one of required. An empty
// requirement is always satisfied.
func HasAny(granted []string, required []Scope) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if Has(granted, r) {
			return true
		}
	}
	return false
}

// Describe renders a requirement the way it is reported to callers: "a or b".
func Describe(required []Scope) string {
	return strings.Join(Strings(required), " or ")
}

func Validate(scopes []string) error {
	for _, scope := range Normalize(scopes) {
		if !IsValid(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

func Normalize(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(scopes))
	normalized := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		value := normalize(scope)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	return normalized
}

// Parse splits a space-delimited scope string as carried in OAuth responses.
func Parse(raw string) []string {
	return Normalize(strings.Fields(raw))
}

func IsValid(scope string) bool {
	_, ok := validScopes[normalize(scope)]
	return ok
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
