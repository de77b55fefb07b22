package models

import (
	"fmt"
	"slices"
	"strings"
)

// Built-in enterprise systems.
const (
	SystemOracleERP  = "Oracle ERP"
	SystemD365FO     = "D365 F&O"
	SystemSalesforce = "Salesforce"
	SystemD365CE     = "D365 CE"
)

// DefaultSystems is the catalog used when no override is configured.
var DefaultSystems = []string{SystemOracleERP, SystemD365FO, SystemSalesforce, SystemD365CE}

// DefaultSystemPair mirrors the preselected source/destination in the UI.
var DefaultSystemPair = SystemPair{Source: SystemOracleERP, Destination: SystemD365FO}

// SystemPair is the source and destination used for fit-gap analysis.
type SystemPair struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (p SystemPair) IsZero() bool {
	return p.Source == "" && p.Destination == ""
}

func (p SystemPair) String() string {
	return p.Source + " -> " + p.Destination
}

// Catalog is the fixed set of systems a pair may be drawn from.
type Catalog struct {
	systems []string
}

// NewCatalog builds a catalog, dropping blanks and duplicates.
// An empty input yields the default catalog.
func NewCatalog(systems []string) *Catalog {
	out := make([]string, 0, len(systems))
	for _, s := range systems {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = slices.Clone(DefaultSystems)
	}
	return &Catalog{systems: out}
}

// Systems returns a copy of the catalog entries.
func (c *Catalog) Systems() []string {
	return slices.Clone(c.systems)
}

// Resolve matches name case-insensitively and returns the canonical entry.
func (c *Catalog) Resolve(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.systems {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// Pair validates both ends against the catalog.
func (c *Catalog) Pair(source, destination string) (SystemPair, error) {
	src, ok := c.Resolve(source)
	if !ok {
		return SystemPair{}, fmt.Errorf("%w: %q", ErrUnknownSystem, source)
	}
	dst, ok := c.Resolve(destination)
	if !ok {
		return SystemPair{}, fmt.Errorf("%w: %q", ErrUnknownSystem, destination)
	}
	return SystemPair{Source: src, Destination: dst}, nil
}
