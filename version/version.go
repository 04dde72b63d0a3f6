package version

import (
	goversion "github.com/hashicorp/go-version"
)

// version is overridden at build time with
// -ldflags "-X github.com/saltproject/minion-setup/version.version=..."
var version = "development"

// Version returns the build version of the setup binary.
func Version() string {
	return version
}

// Relation describes how the running setup version relates to a previously
// installed one.
type Relation int

const (
	RelationUnknown Relation = iota
	RelationUpgrade
	RelationReinstall
	RelationDowngrade
)

func (r Relation) String() string {
	switch r {
	case RelationUpgrade:
		return "upgrade"
	case RelationReinstall:
		return "reinstall"
	case RelationDowngrade:
		return "downgrade"
	default:
		return "unknown"
	}
}

// CompareToPrior classifies this run against the version recorded by a prior
// install. Unparseable versions (including dev builds) yield RelationUnknown.
func CompareToPrior(prior string) Relation {
	if prior == "" {
		return RelationUnknown
	}

	current, err := goversion.NewVersion(version)
	if err != nil {
		return RelationUnknown
	}
	previous, err := goversion.NewVersion(prior)
	if err != nil {
		return RelationUnknown
	}

	switch {
	case current.GreaterThan(previous):
		return RelationUpgrade
	case current.LessThan(previous):
		return RelationDowngrade
	default:
		return RelationReinstall
	}
}
