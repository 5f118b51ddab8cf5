// Package source derives the source-control URLs of the community and
// enterprise trees from command-line fragments.
package source

import (
	"strings"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// Trees holds the resolved checkout URLs for one kit build.
type Trees struct {
	Community  string
	Enterprise string
}

// Defaults are the prefixes and fallback fragments for both trees.
type Defaults struct {
	CommunityPrefix   string
	EnterprisePrefix  string
	CommunityDefault  string
	EnterpriseDefault string
}

// MaxArgs is the number of positional fragments accepted.
const MaxArgs = 2

// ResolveURL turns a fragment into a checkout URL. Fragments starting with
// "http" pass through; a single leading "/" is dropped before the fragment
// is appended to prefix.
func ResolveURL(prefix, fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", kerrors.ValidationError("empty source fragment").
			WithContext("prefix", prefix).
			Build()
	}
	if strings.HasPrefix(fragment, "http") {
		return fragment, nil
	}
	fragment = strings.TrimPrefix(fragment, "/")
	return prefix + fragment, nil
}

// Select applies the argument rules: no arguments use both defaults, one
// argument is used for both trees, two arguments are used in order.
func Select(d Defaults, args []string) (Trees, error) {
	var community, enterprise string
	switch len(args) {
	case 0:
		community, enterprise = d.CommunityDefault, d.EnterpriseDefault
	case 1:
		community, enterprise = args[0], args[0]
	case 2:
		community, enterprise = args[0], args[1]
	default:
		return Trees{}, kerrors.ValidationError("usage: kitbuilder build [community-branch] [enterprise-branch]").
			WithContext("args", len(args)).
			Build()
	}

	var (
		trees Trees
		err   error
	)
	if trees.Community, err = ResolveURL(d.CommunityPrefix, community); err != nil {
		return Trees{}, err
	}
	if trees.Enterprise, err = ResolveURL(d.EnterprisePrefix, enterprise); err != nil {
		return Trees{}, err
	}
	return trees, nil
}
