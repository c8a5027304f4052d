// File: internal/css/css_test.go
package css

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnconditional(t *testing.T) {
	t.Run("No media blocks, no media attribute", func(t *testing.T) {
		sheet := Parse(`body { color: red; }`, "", "https://site.test/css/theme.css")
		assert.Empty(t, sheet.Rules)
		assert.Contains(t, sheet.All, "body { color: red; }")
	})

	t.Run("Media attribute 'all' stays unconditional", func(t *testing.T) {
		sheet := Parse(`body { color: red; }`, "all", "https://site.test/a.css")
		assert.Empty(t, sheet.Rules)
		assert.Contains(t, sheet.All, "color: red")
	})

	t.Run("Non-all media attribute scopes the whole sheet", func(t *testing.T) {
		sheet := Parse(`body { color: red; }`, "screen and (max-width: 600px)", "https://site.test/a.css")
		assert.Empty(t, sheet.All)
		require.Len(t, sheet.Rules, 1)
		require.NotNil(t, sheet.Rules[0].Max)
		assert.Equal(t, 600.0, sheet.Rules[0].Max.Value)
		assert.Contains(t, sheet.Rules[0].Style, "color: red")
	})

	t.Run("Unsupported media attribute drops the sheet content", func(t *testing.T) {
		sheet := Parse(`body { color: red; }`, "print", "https://site.test/a.css")
		assert.Empty(t, sheet.All)
		assert.Empty(t, sheet.Rules)
	})
}

func TestParseMediaBlocks(t *testing.T) {
	raw := `
body { margin: 0; }
@media screen and (min-width: 768px) {
  .masonry { column-count: 3; }
}
@media (max-width: 37.5em) {
  .masonry { column-count: 1; }
}
footer { clear: both; }
`
	sheet := Parse(raw, "", "https://site.test/css/theme.css")

	t.Run("Residual text is unconditional", func(t *testing.T) {
		assert.Contains(t, sheet.All, "body { margin: 0; }")
		assert.Contains(t, sheet.All, "footer { clear: both; }")
		assert.NotContains(t, sheet.All, "column-count")
	})

	t.Run("One rule per block with extracted bounds", func(t *testing.T) {
		require.Len(t, sheet.Rules, 2)

		min := sheet.Rules[0]
		require.NotNil(t, min.Min)
		assert.Nil(t, min.Max)
		assert.Equal(t, 768.0, min.Min.Value)
		assert.Equal(t, UnitPx, min.Min.Unit)
		assert.Contains(t, min.Style, "column-count: 3")

		max := sheet.Rules[1]
		require.NotNil(t, max.Max)
		assert.Nil(t, max.Min)
		assert.Equal(t, 37.5, max.Max.Value)
		assert.Equal(t, UnitEm, max.Max.Unit)
	})

	t.Run("Nested braces inside a block do not end it early", func(t *testing.T) {
		nested := `@media (min-width: 500px) { .a { color: blue; } .b { color: green; } }`
		s := Parse(nested, "", "https://site.test/a.css")
		require.Len(t, s.Rules, 1)
		assert.Contains(t, s.Rules[0].Style, "color: blue")
		assert.Contains(t, s.Rules[0].Style, "color: green")
		assert.Empty(t, s.All)
	})
}

func TestParseConditionBranches(t *testing.T) {
	t.Run("Comma branches become independent rules", func(t *testing.T) {
		raw := `@media (max-width: 480px), (min-width: 1200px) { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 2)
		require.NotNil(t, sheet.Rules[0].Max)
		require.NotNil(t, sheet.Rules[1].Min)
		assert.Equal(t, sheet.Rules[0].Style, sheet.Rules[1].Style)
	})

	t.Run("print branch discarded, screen branch kept", func(t *testing.T) {
		raw := `@media print, screen and (min-width: 768px) { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 1)
		require.NotNil(t, sheet.Rules[0].Min)
	})

	t.Run("Unsupported feature discards the branch", func(t *testing.T) {
		raw := `@media (min-width: 768px) and (orientation: landscape) { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		assert.Empty(t, sheet.Rules)
	})

	t.Run("Height clauses are tolerated but not applied", func(t *testing.T) {
		raw := `@media (min-width: 768px) and (max-height: 400px) { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 1)
		require.NotNil(t, sheet.Rules[0].Min)
		assert.Nil(t, sheet.Rules[0].Max)
	})

	t.Run("Unitless values default to px", func(t *testing.T) {
		raw := `@media (min-width: 768) { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 1)
		assert.Equal(t, UnitPx, sheet.Rules[0].Min.Unit)
	})

	t.Run("Bare screen branch never matches", func(t *testing.T) {
		raw := `@media screen { .x { display: none; } }`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 1)
		assert.False(t, sheet.Rules[0].Matches(320, 16))
		assert.False(t, sheet.Rules[0].Matches(1920, 16))
	})
}

func TestRuleMatches(t *testing.T) {
	t.Run("min-width boundary is inclusive", func(t *testing.T) {
		r := Rule{Min: &Length{Value: 768, Unit: UnitPx}}
		assert.False(t, r.Matches(767, 16))
		assert.True(t, r.Matches(768, 16))
	})

	t.Run("max-width em bound converts via em base", func(t *testing.T) {
		r := Rule{Max: &Length{Value: 37.5, Unit: UnitEm}}
		assert.True(t, r.Matches(600, 16)) // 37.5em * 16 = 600
		assert.False(t, r.Matches(601, 16))
	})

	t.Run("min takes priority over max", func(t *testing.T) {
		r := Rule{
			Min: &Length{Value: 480, Unit: UnitPx},
			Max: &Length{Value: 768, Unit: UnitPx},
		}
		// Max is not consulted once min is satisfied.
		assert.True(t, r.Matches(1024, 16))
		assert.False(t, r.Matches(320, 16))
	})
}

func TestStripping(t *testing.T) {
	t.Run("Comments removed before block matching", func(t *testing.T) {
		raw := `/* { stray brace */ body { color: red; } /* another } */`
		sheet := Parse(raw, "", "https://site.test/a.css")
		assert.Contains(t, sheet.All, "color: red")
		assert.NotContains(t, sheet.All, "stray brace")
	})

	t.Run("Keyframes removed including vendor prefixes", func(t *testing.T) {
		raw := `
@keyframes spin { from { transform: rotate(0); } to { transform: rotate(360deg); } }
@-webkit-keyframes spin { from { opacity: 0; } }
@media (min-width: 768px) { .x { display: none; } }
`
		sheet := Parse(raw, "", "https://site.test/a.css")
		require.Len(t, sheet.Rules, 1)
		assert.NotContains(t, sheet.All, "rotate")
	})

	t.Run("Unterminated comment consumes the tail", func(t *testing.T) {
		sheet := Parse(`body { color: red; } /* oops`, "", "https://site.test/a.css")
		assert.Contains(t, sheet.All, "color: red")
		assert.NotContains(t, sheet.All, "oops")
	})
}

func TestURLRewriting(t *testing.T) {
	base := "https://site.test/css/theme.css"

	t.Run("Relative references resolve against the sheet URL", func(t *testing.T) {
		sheet := Parse(`.hero { background: url(images/bg.png); }`, "", base)
		assert.Contains(t, sheet.All, "url(https://site.test/css/images/bg.png)")
	})

	t.Run("Quotes are preserved", func(t *testing.T) {
		sheet := Parse(`.hero { background: url("images/bg.png"); }`, "", base)
		assert.Contains(t, sheet.All, `url("https://site.test/css/images/bg.png")`)
	})

	t.Run("Rewriting applies inside media blocks", func(t *testing.T) {
		raw := `@media (min-width: 768px) { .hero { background: url(../img/x.png); } }`
		sheet := Parse(raw, "", base)
		require.Len(t, sheet.Rules, 1)
		assert.Contains(t, sheet.Rules[0].Style, "url(https://site.test/img/x.png)")
	})

	t.Run("Absolute, data and fragment references untouched", func(t *testing.T) {
		raw := `.a { background: url(https://cdn.test/x.png); }
.b { background: url(data:image/gif;base64,R0lGOD); }
.c { filter: url(#blur); }
.d { background: url(//cdn.test/y.png); }`
		sheet := Parse(raw, "", base)
		assert.Contains(t, sheet.All, "url(https://cdn.test/x.png)")
		assert.Contains(t, sheet.All, "url(data:image/gif;base64,R0lGOD)")
		assert.Contains(t, sheet.All, "url(#blur)")
		assert.Contains(t, sheet.All, "url(//cdn.test/y.png)")
	})
}

func TestParseRuleShape(t *testing.T) {
	raw := `
@media screen and (min-width: 768px) { .a {} }
@media screen and (min-width: 48em) and (max-width: 64em) { .b {} }
@media (max-width: 600px) { .c {} }
`
	sheet := Parse(raw, "", "https://site.test/a.css")

	want := []Rule{
		{Min: &Length{Value: 768, Unit: UnitPx}},
		{Min: &Length{Value: 48, Unit: UnitEm}, Max: &Length{Value: 64, Unit: UnitEm}},
		{Max: &Length{Value: 600, Unit: UnitPx}},
	}
	if diff := cmp.Diff(want, sheet.Rules, cmpopts.IgnoreFields(Rule{}, "Style")); diff != "" {
		t.Errorf("rule bounds mismatch (-want +got):\n%s", diff)
	}
}
