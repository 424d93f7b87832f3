package attack

import (
	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/payload"
)

// PayloadSet is a named, already-materialized list of payload values for
// one marker ID.
type PayloadSet struct {
	MarkerID string
	Values   []string
}

// GenerateRequests expands template's markers against sets according to
// mode and returns the resulting payload-value maps in generation order
// (one map per request, keyed by marker ID). Every map is collected into
// the returned slice, Cluster Bomb's full Cartesian product included.
func GenerateRequests(parsed *payload.ParsedTemplate, sets []PayloadSet, mode Mode) ([]map[string]string, error) {
	if len(parsed.Markers) == 0 {
		return nil, errors.InvalidAttackConfig("template has no payload markers")
	}
	if len(sets) == 0 {
		return nil, errors.InvalidAttackConfig("no payload sets provided")
	}

	byID := make(map[string]PayloadSet, len(sets))
	for _, s := range sets {
		byID[s.MarkerID] = s
	}
	ids := payload.GetPayloadSetIDs(parsed.Markers)
	ordered := make([]PayloadSet, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, errors.InvalidAttackConfig("no payload value provided for marker: " + id)
		}
		ordered = append(ordered, s)
	}

	switch mode {
	case ModeSniper:
		return sniperRequests(ordered), nil
	case ModeBatteringRam:
		return batteringRamRequests(ordered)
	case ModePitchfork:
		return pitchforkRequests(ordered)
	case ModeClusterBomb:
		var out []map[string]string
		err := clusterBomb(ordered, func(m map[string]string) error {
			out = append(out, m)
			return nil
		})
		return out, err
	default:
		return nil, errors.InvalidAttackConfig("unknown attack mode")
	}
}

// sniperRequests fires each marker's payload set independently; every
// other marker is given its own §id§ text, so injection leaves it as the
// template's original literal.
func sniperRequests(sets []PayloadSet) []map[string]string {
	var out []map[string]string
	for targetIdx, target := range sets {
		for _, v := range target.Values {
			req := make(map[string]string, len(sets))
			for i, s := range sets {
				if i == targetIdx {
					req[s.MarkerID] = v
				} else {
					req[s.MarkerID] = "§" + s.MarkerID + "§"
				}
			}
			out = append(out, req)
		}
	}
	return out
}

// batteringRamRequests advances every marker in lockstep using the same
// payload index; all sets must agree on length.
func batteringRamRequests(sets []PayloadSet) ([]map[string]string, error) {
	n := sets[0].Values
	for _, s := range sets {
		if len(s.Values) != len(n) {
			return nil, errors.InvalidAttackConfig("battering ram requires all payload sets to share the same length")
		}
	}
	var out []map[string]string
	for i := range n {
		req := make(map[string]string, len(sets))
		for _, s := range sets {
			req[s.MarkerID] = s.Values[i]
		}
		out = append(out, req)
	}
	return out, nil
}

// pitchforkRequests advances every marker in parallel by its own index,
// stopping at the shortest set's length.
func pitchforkRequests(sets []PayloadSet) ([]map[string]string, error) {
	minLen := len(sets[0].Values)
	for _, s := range sets {
		if len(s.Values) < minLen {
			minLen = len(s.Values)
		}
	}
	if minLen == 0 {
		return nil, errors.InvalidAttackConfig("pitchfork requires every payload set to be non-empty")
	}
	var out []map[string]string
	for i := 0; i < minLen; i++ {
		req := make(map[string]string, len(sets))
		for _, s := range sets {
			req[s.MarkerID] = s.Values[i]
		}
		out = append(out, req)
	}
	return out, nil
}

// clusterBomb streams every combination of the sets' values (the full
// Cartesian product) through emit, without ever materializing the whole
// product in memory at once.
func clusterBomb(sets []PayloadSet, emit func(map[string]string) error) error {
	for _, s := range sets {
		if len(s.Values) == 0 {
			return errors.InvalidAttackConfig("cluster bomb requires every payload set to be non-empty")
		}
	}

	indices := make([]int, len(sets))
	for {
		req := make(map[string]string, len(sets))
		for i, s := range sets {
			req[s.MarkerID] = s.Values[indices[i]]
		}
		if err := emit(req); err != nil {
			return err
		}

		pos := len(sets) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(sets[pos].Values) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return nil
		}
	}
}
