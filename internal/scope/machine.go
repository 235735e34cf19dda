package scope

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/logger"
)

// Catalog supplies the choice lists the filter selects from.
type Catalog interface {
	Categories(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]docs.Group, error)
	FileNames(ctx context.Context) ([]string, error)
	VersionLabels(ctx context.Context, s Scope, filterValue string) ([]string, error)
}

// Filter is the current selection.
type Filter struct {
	Scope    Scope
	Policy   VersionPolicy
	Value    string // category name, group id, or file name
	Versions []string
}

// Options are the choice lists fetched for the current selection.
type Options struct {
	Categories []string
	Groups     []docs.Group
	FileNames  []string
	Versions   []string
}

// Payload is the validated scope part of a chat request.
type Payload struct {
	Scope         Scope
	VersionPolicy VersionPolicy
	FilterValue   string
	Versions      []string
}

// Machine owns the filter state. Every transition keeps Policy legal for
// Scope and drops version selections that belong to an older value.
//
// Fetches run without the lock held. Each kind of fetch carries a
// generation number and its result is dropped if the state moved on while
// it was in flight.
type Machine struct {
	mu      sync.Mutex
	variant Variant
	catalog Catalog
	logger  *logger.Logger

	filter  Filter
	options Options
	popGen  uint64
	verGen  uint64
}

// New creates a machine in the ALL/LATEST state.
func New(variant Variant, catalog Catalog, log *logger.Logger) *Machine {
	if variant == "" {
		variant = Current
	}
	return &Machine{
		variant: variant,
		catalog: catalog,
		logger:  log.With("component", "scope"),
		filter:  Filter{Scope: All, Policy: variant.Policies(All)[0]},
	}
}

func (m *Machine) Variant() Variant {
	return m.variant
}

// Scopes lists the scopes offered by the variant.
func (m *Machine) Scopes() []Scope {
	return m.variant.Scopes()
}

// LegalPolicies lists the policies allowed for the current scope.
func (m *Machine) LegalPolicies() []VersionPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variant.Policies(m.filter.Scope)
}

// Filter returns a copy of the current selection.
func (m *Machine) Filter() Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.filter
	f.Versions = slices.Clone(m.filter.Versions)
	return f
}

// Options returns a copy of the current choice lists.
func (m *Machine) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Options{
		Categories: slices.Clone(m.options.Categories),
		Groups:     slices.Clone(m.options.Groups),
		FileNames:  slices.Clone(m.options.FileNames),
		Versions:   slices.Clone(m.options.Versions),
	}
}

// SetScope switches scope, resetting the policy to the scope's first legal
// value and clearing the filter value and version selection. It then loads
// the scope's choice list. A failed load keeps the previous list and is
// returned for the caller to report; the transition itself stands.
func (m *Machine) SetScope(ctx context.Context, s Scope) error {
	policies := m.variant.Policies(s)
	if policies == nil {
		return fmt.Errorf("%w: %s", ErrIllegalScope, s)
	}

	m.mu.Lock()
	m.filter = Filter{Scope: s, Policy: policies[0]}
	m.options.Versions = nil
	m.popGen++
	m.verGen++
	gen := m.popGen
	m.mu.Unlock()

	switch s {
	case Category:
		cats, err := m.catalog.Categories(ctx)
		return m.storePopulation(gen, s, err, func(o *Options) { o.Categories = cats })
	case Group:
		groups, err := m.catalog.Groups(ctx)
		return m.storePopulation(gen, s, err, func(o *Options) { o.Groups = groups })
	case File:
		names, err := m.catalog.FileNames(ctx)
		return m.storePopulation(gen, s, err, func(o *Options) { o.FileNames = names })
	}
	return nil
}

func (m *Machine) storePopulation(gen uint64, s Scope, err error, apply func(*Options)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.popGen {
		m.logger.Debug("dropping stale choice list", "scope", s)
		return nil
	}
	if err != nil {
		m.logger.Warn("failed to load choices", "scope", s, "error", err)
		return fmt.Errorf("failed to load %s choices: %w", s.Label(), err)
	}
	apply(&m.options)
	return nil
}

// SetVersionPolicy changes the policy. Switching to SPECIFIC with a value
// already chosen loads that value's version labels.
func (m *Machine) SetVersionPolicy(ctx context.Context, p VersionPolicy) error {
	m.mu.Lock()
	if !slices.Contains(m.variant.Policies(m.filter.Scope), p) {
		scope := m.filter.Scope
		m.mu.Unlock()
		return fmt.Errorf("%w: %s under %s", ErrIllegalPolicy, p, scope)
	}
	if m.filter.Policy == p {
		m.mu.Unlock()
		return nil
	}
	m.filter.Policy = p
	m.filter.Versions = nil
	m.options.Versions = nil
	m.verGen++
	gen, scope, value := m.verGen, m.filter.Scope, m.filter.Value
	m.mu.Unlock()

	if p != Specific || value == "" {
		return nil
	}
	return m.loadVersions(ctx, gen, scope, value)
}

// SelectFilterValue picks the category name, group id or file name. Any
// version selection is cleared; under SPECIFIC the version labels are
// reloaded for the new value.
func (m *Machine) SelectFilterValue(ctx context.Context, value string) error {
	m.mu.Lock()
	scope := m.filter.Scope
	if scope == All {
		m.mu.Unlock()
		return fmt.Errorf("%w: ALL takes no filter value", ErrIllegalScope)
	}
	m.filter.Value = value
	m.filter.Versions = nil
	m.options.Versions = nil
	m.verGen++
	gen, policy := m.verGen, m.filter.Policy
	m.mu.Unlock()

	if policy != Specific || value == "" {
		return nil
	}
	return m.loadVersions(ctx, gen, scope, value)
}

// SelectGroup is SelectFilterValue for a group id.
func (m *Machine) SelectGroup(ctx context.Context, groupID int64) error {
	return m.SelectFilterValue(ctx, strconv.FormatInt(groupID, 10))
}

func (m *Machine) loadVersions(ctx context.Context, gen uint64, scope Scope, value string) error {
	labels, err := m.catalog.VersionLabels(ctx, scope, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.verGen {
		m.logger.Debug("dropping stale version list", "scope", scope, "value", value)
		return nil
	}
	if err != nil {
		m.logger.Warn("failed to load versions", "scope", scope, "value", value, "error", err)
		return fmt.Errorf("failed to load versions: %w", err)
	}
	m.options.Versions = labels
	return nil
}

// ToggleVersion selects or deselects a version label under SPECIFIC. The
// current variant keeps at most one selection, so picking a label replaces
// the previous one.
func (m *Machine) ToggleVersion(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.filter.Policy != Specific {
		return fmt.Errorf("%w: versions are only selectable under %s", ErrIllegalPolicy, Specific)
	}
	if !slices.Contains(m.options.Versions, label) {
		return fmt.Errorf("version %q is not offered", label)
	}

	if i := slices.Index(m.filter.Versions, label); i >= 0 {
		m.filter.Versions = slices.Delete(m.filter.Versions, i, i+1)
		return nil
	}
	if !m.variant.MultiVersion() {
		m.filter.Versions = []string{label}
		return nil
	}
	// keep selections in the order they are offered
	selected := make([]string, 0, len(m.filter.Versions)+1)
	for _, v := range m.options.Versions {
		if v == label || slices.Contains(m.filter.Versions, v) {
			selected = append(selected, v)
		}
	}
	m.filter.Versions = selected
	return nil
}

// Payload validates the selection and returns it in request form. It has no
// side effects.
func (m *Machine) Payload() (Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.filter
	if f.Value == "" {
		switch f.Scope {
		case Category:
			return Payload{}, ErrCategoryRequired
		case Group:
			return Payload{}, ErrGroupRequired
		case File:
			return Payload{}, ErrFileRequired
		}
	}
	if f.Policy == Specific && len(f.Versions) == 0 {
		return Payload{}, ErrVersionRequired
	}

	versions := []string{}
	if f.Policy == Specific {
		versions = append(versions, f.Versions...)
	}
	return Payload{
		Scope:         f.Scope,
		VersionPolicy: f.Policy,
		FilterValue:   f.Value,
		Versions:      versions,
	}, nil
}

// Describe renders the selection for status lines, e.g. "CATEGORY 가이드 / LATEST".
func (m *Machine) Describe() string {
	f := m.Filter()
	out := string(f.Scope)
	if f.Value != "" {
		out += " " + m.valueLabel(f)
	}
	out += " / " + string(f.Policy)
	if len(f.Versions) > 0 {
		out += " " + fmt.Sprint(f.Versions)
	}
	return out
}

func (m *Machine) valueLabel(f Filter) string {
	if f.Scope != Group {
		return f.Value
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.options.Groups {
		if strconv.FormatInt(g.GroupID, 10) == f.Value {
			return g.GroupName
		}
	}
	return "#" + f.Value
}
