// Package model defines the core data types shared by every subcog service:
// memories, namespaces, domains, search filters and the event types emitted
// along the capture and recall paths.
package model

import "fmt"

// Namespace is the closed set of memory categories. Each selects default
// retention and search weighting elsewhere in the system.
type Namespace string

const (
	NamespaceDecisions  Namespace = "decisions"
	NamespacePatterns   Namespace = "patterns"
	NamespaceLearnings  Namespace = "learnings"
	NamespaceBlockers   Namespace = "blockers"
	NamespaceProgress   Namespace = "progress"
	NamespaceContext    Namespace = "context"
	NamespaceTechDebt   Namespace = "tech-debt"
	NamespaceAPIs       Namespace = "apis"
	NamespaceConfig     Namespace = "config"
	NamespaceSecurity   Namespace = "security"
	NamespacePerformance Namespace = "performance"
	NamespaceTesting    Namespace = "testing"
)

// AllNamespaces lists the closed set in a stable, documented order.
var AllNamespaces = []Namespace{
	NamespaceDecisions,
	NamespacePatterns,
	NamespaceLearnings,
	NamespaceBlockers,
	NamespaceProgress,
	NamespaceContext,
	NamespaceTechDebt,
	NamespaceAPIs,
	NamespaceConfig,
	NamespaceSecurity,
	NamespacePerformance,
	NamespaceTesting,
}

// Valid reports whether ns is one of the closed set of namespaces.
func (ns Namespace) Valid() bool {
	for _, n := range AllNamespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// DisplayName returns a human-readable label for the namespace.
func (ns Namespace) DisplayName() string {
	switch ns {
	case NamespaceTechDebt:
		return "Tech Debt"
	case NamespaceAPIs:
		return "APIs"
	default:
		if ns == "" {
			return ""
		}
		r := []rune(string(ns))
		r[0] = toUpper(r[0])
		return string(r)
	}
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// DefaultRetentionDays returns the namespace's default retention window,
// used when no explicit override is configured (see internal/gc).
func (ns Namespace) DefaultRetentionDays() int {
	switch ns {
	case NamespaceDecisions, NamespaceSecurity:
		return 365
	case NamespacePatterns, NamespaceLearnings, NamespaceAPIs:
		return 180
	case NamespaceTechDebt, NamespaceBlockers:
		return 90
	case NamespaceProgress, NamespaceTesting, NamespacePerformance:
		return 60
	case NamespaceConfig:
		return 180
	case NamespaceContext:
		return 30
	default:
		return 90
	}
}

// ParseNamespace validates a raw string against the closed set.
func ParseNamespace(s string) (Namespace, error) {
	ns := Namespace(s)
	if !ns.Valid() {
		return "", fmt.Errorf("invalid namespace %q", s)
	}
	return ns, nil
}
