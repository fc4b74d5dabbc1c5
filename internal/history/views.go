package history

import (
	"errors"
	"fmt"
)

var ErrUnknownHierarchy = errors.New("unknown hierarchy level")

// Hierarchy selects how much of the tree an agent gets to see.
type Hierarchy string

const (
	// Deep exposes the whole tree.
	Deep Hierarchy = "deep"
	// PredefinedOnly exposes a flat list of the predefined summaries.
	PredefinedOnly Hierarchy = "predefined"
	// PredefinedParents exposes the nodes directly above the predefined
	// summaries.
	PredefinedParents Hierarchy = "predefined+"
	// Flat exposes only the raw leaves.
	Flat Hierarchy = "none"
)

// Hierarchies lists the accepted levels.
var Hierarchies = []Hierarchy{Deep, PredefinedOnly, PredefinedParents, Flat}

func ParseHierarchy(s string) (Hierarchy, error) {
	for _, h := range Hierarchies {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHierarchy, s)
}

// Predefined returns every predefined summary below root, depth first.
// The search does not descend into predefined nodes.
func Predefined(root *Summary) []*Summary {
	var out []*Summary
	for _, c := range root.Children {
		if c.Predefined {
			out = append(out, c)
			continue
		}
		out = append(out, Predefined(c)...)
	}
	return out
}

// ParentsOfPredefined returns the nodes whose children include a predefined
// summary, depth first. Once a predefined child is seen, the node's other
// children are not searched.
func ParentsOfPredefined(root *Summary) []*Summary {
	var out []*Summary
	for _, c := range root.Children {
		if c.Predefined {
			return []*Summary{root}
		}
		out = append(out, ParentsOfPredefined(c)...)
	}
	return out
}
