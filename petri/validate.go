package petri

import "fmt"

// Issue is a single structural-validation finding: a severity and a
// message (grounded on validation/checks.go's Validator.AddError/AddWarning).
type Issue struct {
	Severity string // "error" or "warning"
	Message  string
}

// Validate performs the static-analysis counterpart of "cyclic references
// resolved by storing endpoints by stable id" (spec §9): it does not
// explore reachability (that is a heavier analytic feature, out of this
// core's scope), it checks that every stored id still resolves and flags
// degenerate transitions. The bipartite place/transition invariant on arcs
// is already enforced at construction (AddArc) and is not rechecked here.
func (n *Net) Validate() []Issue {
	var issues []Issue

	for id, a := range n.Arcs {
		if n.PlaceOf(a) == nil {
			issues = append(issues, Issue{Severity: "error", Message: fmt.Sprintf("arc %s has no resolvable place endpoint", id)})
		}
		if n.TransitionOf(a) == nil {
			issues = append(issues, Issue{Severity: "error", Message: fmt.Sprintf("arc %s has no resolvable transition endpoint", id)})
		}
	}

	for id, t := range n.Transitions {
		hasInput := len(n.InputArcs(id)) > 0
		hasOutput := len(n.OutputArcs(id)) > 0
		if !hasInput && !hasOutput && !t.IsSource && !t.IsSink {
			issues = append(issues, Issue{
				Severity: "warning",
				Message:  fmt.Sprintf("transition %q (%s) has no input or output arcs and is not flagged source/sink", t.Label, id),
			})
		}
		if !hasInput && !t.IsSource {
			issues = append(issues, Issue{
				Severity: "warning",
				Message:  fmt.Sprintf("transition %q (%s) has no input arcs but is not flagged is_source", t.Label, id),
			})
		}
		if !hasOutput && !t.IsSink {
			issues = append(issues, Issue{
				Severity: "warning",
				Message:  fmt.Sprintf("transition %q (%s) has no output arcs but is not flagged is_sink", t.Label, id),
			})
		}
	}

	for id, p := range n.Places {
		if p.Tokens < 0 {
			issues = append(issues, Issue{Severity: "error", Message: fmt.Sprintf("place %q (%s) has negative tokens", p.Label, id)})
		}
	}

	return issues
}

// HasErrors reports whether any issue in issues is an error (as opposed to
// a warning).
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}
