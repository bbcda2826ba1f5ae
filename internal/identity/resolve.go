package identity

import (
	"fmt"
	"strings"
)

// Status is the outcome of one resolution.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusAmbiguous  Status = "ambiguous"
)

// Method records which lookup produced a resolved identity.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
)

// Resolution is the tagged result of Resolve. Identity is set only when
// Status is StatusResolved; Candidates only when it is StatusAmbiguous.
type Resolution struct {
	NameRaw    string     `json:"name_raw"`
	Status     Status     `json:"status"`
	Method     Method     `json:"method,omitempty"`
	Identity   Identity   `json:"identity"`
	Candidates []Identity `json:"candidates,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Resolve maps a raw roster name to an identity. An exact raw-name hit in kb
// always wins. Otherwise the name is matched on last name, first initial and
// pitcher flag; more than one candidate is reported as ambiguous and never
// narrowed further.
func Resolve(kb *KnowledgeBase, nameRaw string, isPitcherGuess bool) Resolution {
	res := Resolution{NameRaw: nameRaw, Status: StatusUnresolved}

	if id, ok := kb.Lookup(nameRaw); ok {
		res.Status = StatusResolved
		res.Method = MethodExact
		res.Identity = id
		return res
	}

	last, initial, ok := parseRawName(nameRaw)
	if !ok {
		res.Note = "name has no usable tokens"
		return res
	}

	var candidates []Identity
	for _, id := range kb.withLastName(last) {
		if id.IsPitcher != isPitcherGuess {
			continue
		}
		if _, first := splitFullName(id.FullName); first != initial {
			continue
		}
		candidates = append(candidates, id)
	}

	switch len(candidates) {
	case 0:
		res.Note = fmt.Sprintf("no %s named %q in history", role(isPitcherGuess), strings.TrimSpace(nameRaw))
	case 1:
		res.Status = StatusResolved
		res.Method = MethodFuzzy
		res.Identity = candidates[0]
		res.Note = fmt.Sprintf("fuzzy matched %q to %s (%s)", strings.TrimSpace(nameRaw), candidates[0].FullName, candidates[0].ExternalID)
	default:
		res.Status = StatusAmbiguous
		res.Candidates = candidates
		res.Note = fmt.Sprintf("%d %ss match %q", len(candidates), role(isPitcherGuess), strings.TrimSpace(nameRaw))
	}
	return res
}

func role(pitcher bool) string {
	if pitcher {
		return "pitcher"
	}
	return "hitter"
}
