package bcknd

import (
	"fmt"
	"io"
	"strings"
)

// PatternTableEntry is one row of the compile-time subscription table:
// a path pattern and the clients interested in everything it covers.
type PatternTableEntry struct {
	Pattern string
	Clients []ClientID
}

// patternEntry is the table row after resolving clients to capabilities.
type patternEntry struct {
	pattern string
	segs    []patternSegment
	clients map[ClientID]SubscriptionCaps
}

// SubscriptionRegistry holds the static path-pattern -> client-capability
// table and answers longest-match queries (C2). It is built once at
// startup and is safe to consult from any dispatch context without locking
// — spec.md §3 invariant: "the subscription registry is read-only after
// initialization".
type SubscriptionRegistry struct {
	entries []patternEntry
}

// NewSubscriptionRegistry compiles the static table. It panics if a pattern
// cannot be parsed into segments (a malformed compile-time table is a
// programmer error, not a runtime condition), mirroring the teacher's
// RegisterFactory panic-on-misuse convention.
func NewSubscriptionRegistry(table []PatternTableEntry) *SubscriptionRegistry {
	if len(table) > MaxPatterns {
		panic(fmt.Sprintf("bcknd: subscription table has %d entries, exceeds MaxPatterns=%d", len(table), MaxPatterns))
	}
	entries := make([]patternEntry, 0, len(table))
	for _, row := range table {
		segs, err := splitPattern(row.Pattern)
		if err != nil {
			panic(fmt.Sprintf("bcknd: invalid subscription pattern %q: %v", row.Pattern, err))
		}
		clients := make(map[ClientID]SubscriptionCaps, len(row.Clients))
		for _, c := range row.Clients {
			clients[c] = FullCaps
		}
		entries = append(entries, patternEntry{pattern: row.Pattern, segs: segs, clients: clients})
	}
	return &SubscriptionRegistry{entries: entries}
}

// SubscribersFor answers the longest-match query of spec.md §4.2: every
// pattern whose match score against path equals the maximum observed has
// its per-client capabilities OR'd into the result. Patterns scoring zero
// are ignored. The result is a pure function of the table and path (spec.md
// §8 invariant 5/law).
func (r *SubscriptionRegistry) SubscribersFor(path string) map[ClientID]SubscriptionCaps {
	pathSegs, err := splitPath(path)
	result := make(map[ClientID]SubscriptionCaps)
	if err != nil {
		return result
	}

	best := 0
	var winners []int
	for i, e := range r.entries {
		score := matchScore(e.segs, pathSegs)
		if score == 0 {
			continue
		}
		if score > best {
			best = score
			winners = winners[:0]
		}
		if score == best {
			winners = append(winners, i)
		}
	}
	for _, i := range winners {
		for c, caps := range r.entries[i].clients {
			result[c] = result[c].Merge(caps)
		}
	}
	return result
}

// DumpRegistry writes the compiled pattern table to sink, one line per
// pattern, for operator diagnostics (spec.md §4.6 dump_registry).
func (r *SubscriptionRegistry) DumpRegistry(sink io.Writer) {
	for _, e := range r.entries {
		names := make([]string, 0, len(e.clients))
		for c := range e.clients {
			names = append(names, c.String())
		}
		fmt.Fprintf(sink, "%s -> %s\n", e.pattern, strings.Join(names, ","))
	}
}

// DumpSubscribers writes the resolved subscriber set for path to sink
// (spec.md §4.6 dump_subscribers).
func (r *SubscriptionRegistry) DumpSubscribers(sink io.Writer, path string) {
	for c, caps := range r.SubscribersFor(path) {
		fmt.Fprintf(sink, "%s: validate=%v notify=%v own_oper_data=%v\n",
			c, caps.ValidateConfig, caps.NotifyConfig, caps.OwnOperData)
	}
}

// --- pattern grammar -------------------------------------------------
//
// The wildcard-in-key grammar is under-specified in spec.md (see spec.md §9
// Open Questions); the shape implemented here is documented explicitly:
//
//   - A path/pattern is a sequence of '/'-separated segments.
//   - A segment is `tag` or `tag[key='value']...` (zero or more key
//     predicates).
//   - Two segments structurally match if their tags are equal (literal) and
//     they carry the same number of predicates, each with an equal key
//     (literal) and a value that is equal OR wildcarded: a predicate value
//     of exactly `*` on either side of the comparison matches any value on
//     the other side (spec.md §4.2 rule 2: "either side may be *").
//   - A pattern segment that is exactly the literal token `*` (not a
//     predicate value — the whole segment) is a *tail wildcard*: it may only
//     appear as a pattern's final segment, and it matches the remainder of
//     the path at any depth, however many segments remain (spec.md's
//     "/* at the tail" subtree-match idiom).
//
// Score = (number of segments that structurally matched, stopping at the
// first structural mismatch) + (number of predicates matched within those
// segments) + 1 if the comparison "ends in a match": either the pattern was
// fully consumed by a tail wildcard, or pattern and path have the same
// segment count and every segment matched.

type predicate struct {
	key, value string
}

type patternSegment struct {
	tag    string
	preds  []predicate
	isTail bool // segment is the literal "*" token
}

func splitPattern(pattern string) ([]patternSegment, error) {
	segs, err := splitSegments(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]patternSegment, len(segs))
	for i, s := range segs {
		if s == "*" {
			out[i] = patternSegment{isTail: true}
			continue
		}
		tag, preds, err := parseSegment(s)
		if err != nil {
			return nil, err
		}
		out[i] = patternSegment{tag: tag, preds: preds}
	}
	return out, nil
}

func splitPath(path string) ([]patternSegment, error) {
	segs, err := splitSegments(path)
	if err != nil {
		return nil, err
	}
	out := make([]patternSegment, len(segs))
	for i, s := range segs {
		tag, preds, err := parseSegment(s)
		if err != nil {
			return nil, err
		}
		out[i] = patternSegment{tag: tag, preds: preds}
	}
	return out, nil
}

// splitSegments splits a leading-'/'-rooted path/pattern into its non-empty
// segments, the way "/a/b/c" -> ["a","b","c"].
func splitSegments(s string) ([]string, error) {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "/"), nil
}

// parseSegment splits `tag[key='value'][key2='value2']` into its tag and
// ordered predicate list.
func parseSegment(seg string) (tag string, preds []predicate, err error) {
	br := strings.IndexByte(seg, '[')
	if br < 0 {
		return seg, nil, nil
	}
	tag = seg[:br]
	rest := seg[br:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("expected '[' at %q", rest)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated predicate in %q", seg)
		}
		body := rest[1:end]
		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			return "", nil, fmt.Errorf("malformed predicate %q", body)
		}
		key := body[:eq]
		val := strings.Trim(body[eq+1:], "'")
		preds = append(preds, predicate{key: key, value: val})
		rest = rest[end+1:]
	}
	return tag, preds, nil
}

func predicatesMatch(a, b []predicate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].key != b[i].key {
			return false
		}
		if a[i].value == "*" || b[i].value == "*" {
			continue
		}
		if a[i].value != b[i].value {
			return false
		}
	}
	return true
}

// matchScore implements the scoring rule described above, comparing a
// pattern's segments against a concrete path's segments.
func matchScore(pattern, path []patternSegment) int {
	score := 0
	i := 0
	for i < len(pattern) {
		seg := pattern[i]
		if seg.isTail {
			// Tail wildcard: matches everything from here on, regardless
			// of how many path segments remain (including zero).
			return score + 1
		}
		if i >= len(path) {
			return score
		}
		if seg.tag != path[i].tag || !predicatesMatch(seg.preds, path[i].preds) {
			return score
		}
		score++
		score += len(seg.preds)
		i++
	}
	if i == len(path) {
		// Pattern and path fully consumed in lockstep: the comparison
		// "ends in a match" (spec.md §4.2 rule 1 bonus point).
		score++
	}
	return score
}
