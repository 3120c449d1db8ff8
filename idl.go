// IDL-property to content-attribute conversion. The astMap stores object
// model properties like `<details>.open = true` and `<ol>.start = 2`, not
// content attributes like `<details open>` and `<ol start="2">`; each
// property goes through a conversion rule keyed by (tag, property) before it
// may appear in serialized output. Properties without a rule are dropped
// rather than passed through, so unknown syntax never leaks into documents.
package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

type idlKind int

const (
	idlString idlKind = iota
	idlBoolean
	idlNumber
	idlSpaceSeparated
)

type idlRule struct {
	attr string
	kind idlKind
}

// genericIDLRules apply on any element.
var genericIDLRules = map[string]idlRule{
	"className": {"class", idlSpaceSeparated},
	"id":        {"id", idlString},
	"style":     {"style", idlString},
	"title":     {"title", idlString},
	"lang":      {"lang", idlString},
	"dir":       {"dir", idlString},
	"hidden":    {"hidden", idlBoolean},
}

// tagIDLRules apply only on the named element.
var tagIDLRules = map[string]map[string]idlRule{
	"a": {
		"href":   {"href", idlString},
		"target": {"target", idlString},
		"rel":    {"rel", idlSpaceSeparated},
		"name":   {"name", idlString},
	},
	"img": {
		"src":     {"src", idlString},
		"alt":     {"alt", idlString},
		"width":   {"width", idlNumber},
		"height":  {"height", idlNumber},
		"loading": {"loading", idlString},
	},
	"details": {
		"open": {"open", idlBoolean},
	},
	"ol": {
		"start":    {"start", idlNumber},
		"reversed": {"reversed", idlBoolean},
		"type":     {"type", idlString},
	},
	"li": {
		"value": {"value", idlNumber},
	},
	"td": {
		"colSpan": {"colspan", idlNumber},
		"rowSpan": {"rowspan", idlNumber},
	},
	"th": {
		"colSpan": {"colspan", idlNumber},
		"rowSpan": {"rowspan", idlNumber},
		"scope":   {"scope", idlString},
	},
	"blockquote": {
		"cite": {"cite", idlString},
	},
	"q": {
		"cite": {"cite", idlString},
	},
	"time": {
		"dateTime": {"datetime", idlString},
	},
	"input": {
		"type":     {"type", idlString},
		"checked":  {"checked", idlBoolean},
		"disabled": {"disabled", idlBoolean},
	},
	// Custom elements expanded by the rewrite pass.
	"Mention": {
		"handle": {"handle", idlString},
	},
	"CustomEmoji": {
		"name": {"name", idlString},
		"url":  {"url", idlString},
	},
}

// convertIDLToContentAttribute converts one IDL property to its content
// attribute. ok is false when the property produces no attribute (no rule,
// or a false boolean). A value whose type contradicts the rule is an
// invariant violation and aborts the current post's conversion.
func convertIDLToContentAttribute(tag, property string, value any) (attr html.Attribute, ok bool, err error) {
	rule, found := tagIDLRules[tag][property]
	if !found {
		rule, found = genericIDLRules[property]
	}
	if !found {
		return html.Attribute{}, false, nil
	}

	switch rule.kind {
	case idlBoolean:
		b, isBool := value.(bool)
		if !isBool {
			return html.Attribute{}, false, fmt.Errorf("expected boolean, got %T", value)
		}
		if !b {
			return html.Attribute{}, false, nil
		}
		return html.Attribute{Key: rule.attr}, true, nil
	case idlNumber:
		n, isNum := value.(float64)
		if !isNum {
			return html.Attribute{}, false, fmt.Errorf("expected number, got %T", value)
		}
		return html.Attribute{Key: rule.attr, Val: strconv.FormatFloat(n, 'f', -1, 64)}, true, nil
	case idlSpaceSeparated:
		switch v := value.(type) {
		case string:
			return html.Attribute{Key: rule.attr, Val: v}, true, nil
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				s, isStr := p.(string)
				if !isStr {
					return html.Attribute{}, false, fmt.Errorf("expected string list, got %T element", p)
				}
				parts = append(parts, s)
			}
			return html.Attribute{Key: rule.attr, Val: strings.Join(parts, " ")}, true, nil
		default:
			return html.Attribute{}, false, fmt.Errorf("expected string or string list, got %T", value)
		}
	default: // idlString
		switch v := value.(type) {
		case string:
			return html.Attribute{Key: rule.attr, Val: v}, true, nil
		case float64:
			return html.Attribute{Key: rule.attr, Val: strconv.FormatFloat(v, 'f', -1, 64)}, true, nil
		default:
			return html.Attribute{}, false, fmt.Errorf("expected string, got %T", value)
		}
	}
}

// The attribute ledger records every (tag, attribute) pair observed by the
// rewrite pass across the whole run. Pairs outside the known-good list are
// summarized as a warning after the run so potential sanitizer-bypass or
// encoding issues get a manual look; the warning never blocks completion.
var (
	attrLedgerMu   sync.Mutex
	attributesSeen = map[[2]string]struct{}{}
)

func recordAttributeSeen(tag, attr string) {
	attrLedgerMu.Lock()
	defer attrLedgerMu.Unlock()
	attributesSeen[[2]string{tag, attr}] = struct{}{}
}

// notKnownGoodAttributesSeen returns the recorded pairs that are not on the
// known-good list, sorted for stable output.
func notKnownGoodAttributesSeen() [][2]string {
	attrLedgerMu.Lock()
	defer attrLedgerMu.Unlock()

	var out [][2]string
	for pair := range attributesSeen {
		if !isKnownGoodAttribute(pair[0], pair[1]) {
			out = append(out, pair)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func resetAttributeLedger() {
	attrLedgerMu.Lock()
	defer attrLedgerMu.Unlock()
	attributesSeen = map[[2]string]struct{}{}
}

// isKnownGoodAttribute reports whether the downstream sanitizer is known to
// handle an attribute correctly.
func isKnownGoodAttribute(tag, attr string) bool {
	switch attr {
	case "href", "src", "alt", "title", "id", "class", "style", "lang", "dir",
		"loading", "width", "height", "start", "reversed", "colspan", "rowspan",
		"scope", "datetime", "cite", "rel", "target",
		"data-cohost-src", "data-cohost-href":
		return true
	}
	switch tag {
	case "details":
		return attr == "open"
	case "meta":
		return attr == "name" || attr == "content"
	case "ol", "input":
		return attr == "type"
	case "Mention", "mention":
		return attr == "handle"
	}
	return false
}
