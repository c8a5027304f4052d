// File: internal/css/css.go
package css

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Unit is the measurement unit of a breakpoint bound.
type Unit int

const (
	// UnitPx is the default unit; unitless values are treated as px.
	UnitPx Unit = iota
	UnitEm
)

// String returns the CSS spelling of the unit.
func (u Unit) String() string {
	if u == UnitEm {
		return "em"
	}
	return "px"
}

// MarshalText lets units render as "px"/"em" in serialized reports.
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses the CSS spelling back into a Unit.
func (u *Unit) UnmarshalText(text []byte) error {
	if string(text) == "em" {
		*u = UnitEm
	} else {
		*u = UnitPx
	}
	return nil
}

// Length is a numeric breakpoint bound with its unit.
type Length struct {
	Value float64
	Unit  Unit
}

// Px converts the length to pixels. emBase is the pixel size of 1em at the
// document's default font size.
func (l Length) Px(emBase float64) float64 {
	if l.Unit == UnitEm {
		return l.Value * emBase
	}
	return l.Value
}

// Rule is a style block scoped to a width condition. Either bound may be nil.
type Rule struct {
	Min   *Length
	Max   *Length
	Style string
}

// Matches reports whether the rule applies at the given viewport width (px).
// A min bound takes priority: when present, it alone decides inclusion. This
// mirrors mobile-first authoring where each comma branch states one effective
// bound. Comparisons are inclusive at the boundary.
func (r Rule) Matches(width, emBase float64) bool {
	if r.Min != nil {
		return width >= r.Min.Px(emBase)
	}
	if r.Max != nil {
		return width <= r.Max.Px(emBase)
	}
	return false
}

// Sheet is the parse result for a single stylesheet, keyed by its source URL.
type Sheet struct {
	// URL is the absolute source URL the sheet was fetched from.
	URL string
	// Media is the declared media attribute of the owning <link>, verbatim.
	Media string
	// All holds style text outside any @media block, applied at every width.
	All string
	// Rules are the breakpoint rules in document order.
	Rules []Rule
}

// Parse turns raw stylesheet text into a Sheet. mediaAttr is the owning
// link's declared media attribute (may be empty), srcURL its absolute source
// URL used as the base for url() rewriting. Parse has no side effects; the
// caller owns storing the result.
func Parse(raw, mediaAttr, srcURL string) Sheet {
	text := stripComments(raw)
	text = stripKeyframes(text)

	var base *url.URL
	if srcURL != "" {
		base, _ = url.Parse(srcURL)
	}

	sheet := Sheet{URL: srcURL, Media: mediaAttr}
	blocks, residual := extractMediaBlocks(text)

	if len(blocks) == 0 {
		// No @media blocks. A non-"all" media attribute scopes the whole
		// sheet as a single rule; otherwise everything is unconditional.
		attr := strings.TrimSpace(mediaAttr)
		if attr != "" && !strings.EqualFold(attr, "all") {
			appendRules(&sheet, attr, text, base)
		} else {
			sheet.All = rewriteURLs(text, base)
		}
		return sheet
	}

	sheet.All = rewriteURLs(residual, base)
	for _, b := range blocks {
		appendRules(&sheet, b.condition, b.body, base)
	}
	return sheet
}

type mediaBlock struct {
	condition string
	body      string
}

// extractMediaBlocks finds every "@media <cond> { ... }" block, tracking brace
// depth so nested rule sets inside the block do not end it early. It returns
// the blocks in document order plus the residual text with the blocks removed.
func extractMediaBlocks(text string) ([]mediaBlock, string) {
	var blocks []mediaBlock
	var residual strings.Builder
	i := 0
	for i < len(text) {
		rel := strings.Index(text[i:], "@media")
		if rel < 0 {
			residual.WriteString(text[i:])
			break
		}
		at := i + rel
		open := strings.IndexByte(text[at:], '{')
		if open < 0 {
			// Malformed tail; keep it as residual so nothing silently vanishes.
			residual.WriteString(text[i:])
			break
		}
		residual.WriteString(text[i:at])

		condition := text[at+len("@media") : at+open]
		bodyStart := at + open + 1
		depth := 1
		k := bodyStart
		for k < len(text) && depth > 0 {
			switch text[k] {
			case '{':
				depth++
			case '}':
				depth--
			}
			k++
		}
		bodyEnd := k
		if depth == 0 {
			bodyEnd = k - 1 // exclude the closing brace
		}
		blocks = append(blocks, mediaBlock{
			condition: strings.TrimSpace(condition),
			body:      text[bodyStart:bodyEnd],
		})
		i = k
	}
	return blocks, residual.String()
}

// appendRules splits a media condition on commas (OR branches) and appends one
// Rule per supported branch, all sharing the same style text.
func appendRules(sheet *Sheet, condition, style string, base *url.URL) {
	style = rewriteURLs(style, base)
	for _, branch := range strings.Split(condition, ",") {
		rule, ok := parseBranch(branch)
		if !ok {
			continue
		}
		rule.Style = style
		sheet.Rules = append(sheet.Rules, rule)
	}
}

var (
	minWidthClause  = regexp.MustCompile(`\(\s*min-width\s*:\s*([0-9]*\.?[0-9]+)\s*(px|em)?\s*\)`)
	maxWidthClause  = regexp.MustCompile(`\(\s*max-width\s*:\s*([0-9]*\.?[0-9]+)\s*(px|em)?\s*\)`)
	heightClause    = regexp.MustCompile(`\(\s*(?:min|max)-height\s*:\s*[^)]*\)`)
	mediaTypePrefix = regexp.MustCompile(`^\s*(?:only\s+)?([a-z-]+)`)
)

// parseBranch evaluates one comma branch of a media condition. print branches
// and branches carrying any condition other than min/max width/height are
// discarded. Height clauses are recognized for the unsupported check but never
// applied; width is the only simulated axis.
func parseBranch(branch string) (Rule, bool) {
	b := strings.ToLower(strings.TrimSpace(branch))
	if b == "" {
		return Rule{}, false
	}

	// A branch may open with a media type ("only screen and ...") or go
	// straight into a parenthesized condition. print, speech, negated
	// conditions and the rest are never simulated.
	if m := mediaTypePrefix.FindStringSubmatch(b); m != nil {
		if m[1] != "screen" && m[1] != "all" {
			return Rule{}, false
		}
	}

	stripped := minWidthClause.ReplaceAllString(b, "")
	stripped = maxWidthClause.ReplaceAllString(stripped, "")
	stripped = heightClause.ReplaceAllString(stripped, "")
	if strings.Contains(stripped, "(") {
		// Something other than min/max width/height remains; unsupported.
		return Rule{}, false
	}

	var rule Rule
	if m := minWidthClause.FindStringSubmatch(b); m != nil {
		rule.Min = parseLength(m[1], m[2])
	}
	if m := maxWidthClause.FindStringSubmatch(b); m != nil {
		rule.Max = parseLength(m[1], m[2])
	}
	return rule, true
}

func parseLength(num, unit string) *Length {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	l := Length{Value: v, Unit: UnitPx}
	if unit == "em" {
		l.Unit = UnitEm
	}
	return &l
}

// stripComments removes /* ... */ blocks. An unterminated comment consumes the
// rest of the input, matching browser recovery behavior.
func stripComments(text string) string {
	if !strings.Contains(text, "/*") {
		return text
	}
	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "/*")
		if start < 0 {
			out.WriteString(text[i:])
			break
		}
		out.WriteString(text[i : i+start])
		end := strings.Index(text[i+start+2:], "*/")
		if end < 0 {
			break
		}
		i += start + 2 + end + 2
	}
	return out.String()
}

var keyframesStart = regexp.MustCompile(`@(?:-[a-z]+-)?keyframes\b`)

// stripKeyframes removes @keyframes blocks (vendor-prefixed included). Their
// nested braces would otherwise confuse media block matching.
func stripKeyframes(text string) string {
	for {
		loc := keyframesStart.FindStringIndex(text)
		if loc == nil {
			return text
		}
		open := strings.IndexByte(text[loc[1]:], '{')
		if open < 0 {
			return text[:loc[0]]
		}
		depth := 1
		k := loc[1] + open + 1
		for k < len(text) && depth > 0 {
			switch text[k] {
			case '{':
				depth++
			case '}':
				depth--
			}
			k++
		}
		text = text[:loc[0]] + text[k:]
	}
}

// rewriteURLs resolves every url(...) reference in the style text against the
// sheet's source URL so injected copies keep loading the right assets.
// Absolute references, fragments and data: URIs are left alone.
func rewriteURLs(style string, base *url.URL) string {
	if base == nil || !strings.Contains(style, "url(") {
		return style
	}
	var out strings.Builder
	out.Grow(len(style))
	i := 0
	for i < len(style) {
		rel := strings.Index(style[i:], "url(")
		if rel < 0 {
			out.WriteString(style[i:])
			break
		}
		start := i + rel
		closing := strings.IndexByte(style[start:], ')')
		if closing < 0 {
			out.WriteString(style[i:])
			break
		}
		out.WriteString(style[i:start])
		inner := style[start+len("url(") : start+closing]
		out.WriteString("url(")
		out.WriteString(resolveRef(inner, base))
		out.WriteString(")")
		i = start + closing + 1
	}
	return out.String()
}

func resolveRef(ref string, base *url.URL) string {
	trimmed := strings.TrimSpace(ref)
	quote := ""
	if len(trimmed) >= 2 && (trimmed[0] == '"' || trimmed[0] == '\'') && trimmed[len(trimmed)-1] == trimmed[0] {
		quote = string(trimmed[0])
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	if trimmed == "" ||
		strings.HasPrefix(trimmed, "data:") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.Contains(trimmed, "://") ||
		strings.HasPrefix(trimmed, "//") {
		return ref
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	return quote + base.ResolveReference(u).String() + quote
}
