// Package netio implements JSON import/export for a net document (spec §6:
// "the engine exposes enough read-only structure for a serialiser to emit a
// self-contained net document; it does not define a wire format" — this is
// that serialiser's concrete format). Grounded on parser/json.go's manual
// map[string]interface{} walk over encoding/json, generalized to the
// rewritten variant-tagged Transition/Arc model and the four-case
// guard.Value.
package netio

import (
	"encoding/json"
	"fmt"

	"github.com/pflow-xyz/go-pflow/guard"
	"github.com/pflow-xyz/go-pflow/petri"
)

// FromJSON parses a net document of the shape:
//
//	{
//	  "places": {"p1": {"label": "P1", "initial": 5}},
//	  "transitions": {
//	    "t1": {
//	      "label": "T1", "kind": "immediate", "priority": 0,
//	      "guard": {"type": "string", "value": "sqrt(P1) > 3"},
//	      "is_source": false, "is_sink": false,
//	      "earliest": 0, "latest": 0, "policy": "earliest",
//	      "rate_param": {"type": "number", "value": 1},
//	      "flow_rate": {"type": "number", "value": 1}
//	    }
//	  },
//	  "arcs": [
//	    {"source": "p1", "target": "t1", "kind": "regular",
//	     "weight": {"type": "number", "value": 1}, "label": "w1"}
//	  ]
//	}
//
// Ids in "places"/"transitions" keys become the stable net ids directly
// (this format is meant for round-tripping an already-built net, unlike
// parser/json.go's label-keyed import format).
func FromJSON(data []byte) (*petri.Net, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("JSON root must be an object")
	}

	net := petri.NewNet()

	if placesRaw, found := m["places"]; found {
		placesMap, ok := placesRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("places must be an object")
		}
		for id, pd := range placesMap {
			pmap, ok := pd.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("place %q must be an object", id)
			}
			label, _ := pmap["label"].(string)
			initial, _ := asFloat64(pmap["initial"])
			p := net.AddPlace(label, initial)
			delete(net.Places, p.ID)
			p.ID = id
			net.Places[id] = p
		}
	}

	if transRaw, found := m["transitions"]; found {
		transMap, ok := transRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("transitions must be an object")
		}
		for id, td := range transMap {
			tmap, ok := td.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("transition %q must be an object", id)
			}
			label, _ := tmap["label"].(string)
			kind, err := parseKind(tmap["kind"])
			if err != nil {
				return nil, fmt.Errorf("transition %q: %w", id, err)
			}
			t := net.AddTransition(label, kind)
			delete(net.Transitions, t.ID)
			t.ID = id
			net.Transitions[id] = t

			if p, ok := asFloat64(tmap["priority"]); ok {
				t.Priority = int(p)
			}
			if g, found := tmap["guard"]; found {
				v, err := decodeValue(g)
				if err != nil {
					return nil, fmt.Errorf("transition %q guard: %w", id, err)
				}
				t.Guard = v
			}
			if b, ok := tmap["is_source"].(bool); ok {
				t.IsSource = b
			}
			if b, ok := tmap["is_sink"].(bool); ok {
				t.IsSink = b
			}
			if earliest, ok := asFloat64(tmap["earliest"]); ok {
				t.EarliestDelay = earliest
			}
			if latest, ok := asFloat64(tmap["latest"]); ok {
				t.LatestDelay = latest
			}
			if policy, ok := tmap["policy"].(string); ok && policy == "latest" {
				t.Policy = petri.Latest
			}
			if rp, found := tmap["rate_param"]; found {
				v, err := decodeValue(rp)
				if err != nil {
					return nil, fmt.Errorf("transition %q rate_param: %w", id, err)
				}
				t.RateParam = v
			}
			if fr, found := tmap["flow_rate"]; found {
				v, err := decodeValue(fr)
				if err != nil {
					return nil, fmt.Errorf("transition %q flow_rate: %w", id, err)
				}
				t.FlowRate = v
			}
		}
	}

	if arcsRaw, found := m["arcs"]; found {
		arcsSlice, ok := arcsRaw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("arcs must be an array")
		}
		for i, ai := range arcsSlice {
			amap, ok := ai.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("arc %d must be an object", i)
			}
			source, _ := amap["source"].(string)
			target, _ := amap["target"].(string)
			kind, err := parseArcKind(amap["kind"])
			if err != nil {
				return nil, fmt.Errorf("arc %d: %w", i, err)
			}
			weight := guard.Number(1)
			if w, found := amap["weight"]; found {
				weight, err = decodeValue(w)
				if err != nil {
					return nil, fmt.Errorf("arc %d weight: %w", i, err)
				}
			}
			label, _ := amap["label"].(string)
			if _, err := net.AddLabeledArc(label, source, target, kind, weight); err != nil {
				return nil, fmt.Errorf("arc %d: %w", i, err)
			}
		}
	}

	return net, nil
}

// ToJSON serializes net into the document format FromJSON reads.
func ToJSON(net *petri.Net) ([]byte, error) {
	result := make(map[string]interface{})

	places := make(map[string]interface{}, len(net.Places))
	for id, p := range net.Places {
		places[id] = map[string]interface{}{
			"label":   p.Label,
			"initial": p.Initial,
		}
	}
	result["places"] = places

	transitions := make(map[string]interface{}, len(net.Transitions))
	for id, t := range net.Transitions {
		tdata := map[string]interface{}{
			"label":     t.Label,
			"kind":      kindName(t.Kind),
			"priority":  t.Priority,
			"is_source": t.IsSource,
			"is_sink":   t.IsSink,
		}
		if !t.Guard.IsAbsent() {
			tdata["guard"] = encodeValue(t.Guard)
		}
		switch t.Kind {
		case petri.Timed:
			tdata["earliest"] = t.EarliestDelay
			tdata["latest"] = t.LatestDelay
			if t.Policy == petri.Latest {
				tdata["policy"] = "latest"
			} else {
				tdata["policy"] = "earliest"
			}
		case petri.Stochastic:
			tdata["rate_param"] = encodeValue(t.RateParam)
		case petri.Continuous:
			tdata["flow_rate"] = encodeValue(t.FlowRate)
		}
		transitions[id] = tdata
	}
	result["transitions"] = transitions

	arcs := make([]interface{}, 0, len(net.Arcs))
	for _, a := range net.Arcs {
		adata := map[string]interface{}{
			"source": a.Source,
			"target": a.Target,
			"kind":   arcKindName(a.Kind),
			"weight": encodeValue(a.Weight),
		}
		if a.Label != "" {
			adata["label"] = a.Label
		}
		arcs = append(arcs, adata)
	}
	result["arcs"] = arcs

	return json.MarshalIndent(result, "", "  ")
}

func parseKind(v interface{}) (petri.TransitionKind, error) {
	s, _ := v.(string)
	switch s {
	case "", "immediate":
		return petri.Immediate, nil
	case "timed":
		return petri.Timed, nil
	case "stochastic":
		return petri.Stochastic, nil
	case "continuous":
		return petri.Continuous, nil
	default:
		return 0, fmt.Errorf("unknown transition kind %q", s)
	}
}

func kindName(k petri.TransitionKind) string {
	switch k {
	case petri.Timed:
		return "timed"
	case petri.Stochastic:
		return "stochastic"
	case petri.Continuous:
		return "continuous"
	default:
		return "immediate"
	}
}

func parseArcKind(v interface{}) (petri.ArcKind, error) {
	s, _ := v.(string)
	switch s {
	case "", "regular":
		return petri.Regular, nil
	case "inhibitor":
		return petri.Inhibitor, nil
	default:
		return 0, fmt.Errorf("unknown arc kind %q", s)
	}
}

func arcKindName(k petri.ArcKind) string {
	if k == petri.Inhibitor {
		return "inhibitor"
	}
	return "regular"
}

// decodeValue reads a {"type": ..., "value": ...} guard/rate/weight
// expression document into a guard.Value (spec §4.2's four cases; "func"
// has no wire representation and is rejected). The "absent" document that
// encodeValue writes decodes back to guard.Absent.
func decodeValue(v interface{}) (guard.Value, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return guard.Absent, fmt.Errorf("expression value must be an object")
	}
	typ, _ := m["type"].(string)
	switch typ {
	case "absent":
		return guard.Absent, nil
	case "bool":
		b, _ := m["value"].(bool)
		return guard.Bool(b), nil
	case "number":
		n, _ := asFloat64(m["value"])
		return guard.Number(n), nil
	case "string":
		s, _ := m["value"].(string)
		return guard.Expr(s), nil
	default:
		return guard.Absent, fmt.Errorf("unsupported expression type %q", typ)
	}
}

// encodeValue serializes a guard.Value to its {"type", "value"} wire form.
// A KindFunc (opaque callable) value has no wire representation — it is
// encoded as an absent document rather than failing the whole export,
// since a callable guard is necessarily host-process-specific.
func encodeValue(v guard.Value) map[string]interface{} {
	switch v.KindName() {
	case "bool":
		b, _ := v.AsBool()
		return map[string]interface{}{"type": "bool", "value": b}
	case "number":
		n, _ := v.AsNumber()
		return map[string]interface{}{"type": "number", "value": n}
	case "string":
		return map[string]interface{}{"type": "string", "value": v.Source()}
	default:
		return map[string]interface{}{"type": "absent"}
	}
}

// asFloat64 attempts to convert a decoded JSON value to float64 (grounded
// on parser/json.go's asFloat64 helper).
func asFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
