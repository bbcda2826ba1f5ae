package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Identity is a canonical player. An empty ExternalID means unresolved.
type Identity struct {
	FullName   string `json:"full_name"`
	ExternalID string `json:"external_id,omitempty"`
	Position   string `json:"position,omitempty"`
	MLBTeam    string `json:"mlb_team,omitempty"`
	IsPitcher  bool   `json:"is_pitcher"`
}

// Resolved reports whether the identity carries an external id.
func (i Identity) Resolved() bool {
	return i.ExternalID != ""
}

// Entry is one previously ingested raw name and the identity it resolved to.
type Entry struct {
	NameRaw  string
	Identity Identity
}

// KnowledgeBase is an immutable snapshot of resolved history. Build one per
// ingestion run and share it read-only.
type KnowledgeBase struct {
	byRaw  map[string]Identity
	byLast map[string][]Identity
}

// NewKnowledgeBase indexes entries in order. Entries without an external id
// are ignored; a later entry for the same raw name supersedes an earlier one,
// and the last-name index holds one identity per external id.
func NewKnowledgeBase(entries []Entry) *KnowledgeBase {
	kb := &KnowledgeBase{
		byRaw:  make(map[string]Identity),
		byLast: make(map[string][]Identity),
	}

	slot := make(map[string]int) // last + "\x00" + external id -> index within byLast[last]
	for _, e := range entries {
		id := e.Identity
		if !id.Resolved() {
			continue
		}
		if raw := strings.TrimSpace(e.NameRaw); raw != "" {
			kb.byRaw[raw] = id
		}

		last, _ := splitFullName(id.FullName)
		if last == "" {
			continue
		}
		key := last + "\x00" + id.ExternalID
		if i, ok := slot[key]; ok {
			kb.byLast[last][i] = id
			continue
		}
		slot[key] = len(kb.byLast[last])
		kb.byLast[last] = append(kb.byLast[last], id)
	}
	return kb
}

// Lookup returns the identity stored for an exact raw name.
func (kb *KnowledgeBase) Lookup(nameRaw string) (Identity, bool) {
	id, ok := kb.byRaw[strings.TrimSpace(nameRaw)]
	return id, ok
}

// Size returns the number of distinct raw names indexed.
func (kb *KnowledgeBase) Size() int {
	return len(kb.byRaw)
}

func (kb *KnowledgeBase) withLastName(last string) []Identity {
	return kb.byLast[last]
}

var nameSuffixes = map[string]bool{"jr": true, "sr": true, "ii": true, "iii": true, "iv": true}

// foldName lowercases s, strips diacritics and drops everything that is not
// a letter, digit, space or hyphen.
func foldName(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r), r == ',':
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func nameTokens(s string) []string {
	tokens := strings.Fields(foldName(s))
	for len(tokens) > 1 && nameSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// splitFullName returns the folded last name and first initial of a
// canonical full name.
func splitFullName(full string) (last, initial string) {
	tokens := nameTokens(full)
	if len(tokens) == 0 {
		return "", ""
	}
	return tokens[len(tokens)-1], firstRune(tokens[0])
}

// parseRawName reads an abbreviated roster name. Accepted shapes are
// "J. Smith", "Smith J" and "Smith, J". Anything else, a bare "Smith"
// included, takes the first token's initial and the final token as the
// last name.
func parseRawName(raw string) (last, initial string, ok bool) {
	raw = strings.TrimSpace(raw)
	if before, after, found := strings.Cut(raw, ","); found {
		lt := nameTokens(before)
		it := nameTokens(after)
		if len(lt) > 0 && len(it) > 0 {
			return lt[len(lt)-1], firstRune(it[0]), true
		}
	}

	tokens := nameTokens(raw)
	switch {
	case len(tokens) == 0:
		return "", "", false
	case len(tokens) == 1:
		return tokens[0], firstRune(tokens[0]), true
	case len([]rune(tokens[len(tokens)-1])) == 1:
		return tokens[len(tokens)-2], tokens[len(tokens)-1], true
	default:
		return tokens[len(tokens)-1], firstRune(tokens[0]), true
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
