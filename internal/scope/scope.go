// Package scope holds the chat retrieval filter: which documents a question
// may draw from and which of their versions are eligible.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// Scope selects the documents a question may draw from.
type Scope string

const (
	All      Scope = "ALL"
	Category Scope = "CATEGORY"
	Group    Scope = "GROUP"
	File     Scope = "FILE" // legacy only
)

// VersionPolicy selects which versions within the scope are eligible.
type VersionPolicy string

const (
	Latest      VersionPolicy = "LATEST"
	AllVersions VersionPolicy = "ALL_VERSIONS"
	Specific    VersionPolicy = "SPECIFIC"
)

// Variant picks the backend generation. Legacy scopes by file name and
// allows several specific versions; Current scopes by group and allows one.
type Variant string

const (
	Current Variant = "current"
	Legacy  Variant = "legacy"
)

var (
	ErrIllegalScope     = errors.New("scope not available")
	ErrIllegalPolicy    = errors.New("version policy not allowed for scope")
	ErrCategoryRequired = errors.New("select a category")
	ErrGroupRequired    = errors.New("select a document group")
	ErrFileRequired     = errors.New("select a file")
	ErrVersionRequired  = errors.New("select a version")
)

func (s Scope) String() string { return string(s) }

func (p VersionPolicy) String() string { return string(p) }

// Label is the short human name shown in selectors.
func (s Scope) Label() string {
	switch s {
	case All:
		return "All documents"
	case Category:
		return "Category"
	case Group:
		return "Document group"
	case File:
		return "File"
	}
	return string(s)
}

// Label is the short human name shown in selectors.
func (p VersionPolicy) Label() string {
	switch p {
	case Latest:
		return "Latest only"
	case AllVersions:
		return "All versions"
	case Specific:
		return "Specific version"
	}
	return string(p)
}

// ParseScope accepts a scope name in any case.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToUpper(strings.TrimSpace(s))); sc {
	case All, Category, Group, File:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrIllegalScope, s)
}

// ParsePolicy accepts a policy name in any case; "all" is ALL_VERSIONS.
func ParsePolicy(s string) (VersionPolicy, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "ALL" {
		v = string(AllVersions)
	}
	switch p := VersionPolicy(v); p {
	case Latest, AllVersions, Specific:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrIllegalPolicy, s)
}

// ParseVariant accepts "current" or "legacy"; empty means Current.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "", Current:
		return Current, nil
	case Legacy:
		return Legacy, nil
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// Scopes lists the scopes the variant offers, in display order.
func (v Variant) Scopes() []Scope {
	if v == Legacy {
		return []Scope{All, Category, File}
	}
	return []Scope{All, Category, Group}
}

// Policies lists the legal policies for s. The first entry is the one a
// scope change resets to. Nil means s is not offered by the variant.
func (v Variant) Policies(s Scope) []VersionPolicy {
	switch s {
	case All, Category:
		return []VersionPolicy{Latest, AllVersions}
	case Group:
		if v == Current {
			return []VersionPolicy{AllVersions, Specific}
		}
	case File:
		if v == Legacy {
			return []VersionPolicy{Latest, AllVersions, Specific}
		}
	}
	return nil
}

// MultiVersion reports whether several specific versions may be selected.
func (v Variant) MultiVersion() bool {
	return v == Legacy
}
