package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitesnap/sitesnap/internal/rewrite"
)

func newTestTransformer(marker string) *Transformer {
	return New(rewrite.New("example.org"), Config{
		MarkerToken: marker,
		ContactURL:  "/contact-us",
	})
}

func apply(t *testing.T, tr *Transformer, markup string) string {
	t.Helper()
	out, err := tr.Apply([]byte(markup))
	require.NoError(t, err)
	return string(out)
}

func TestApplyRemovesExecutableScripts(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
	  <script src="/js/app.js"></script>
	  <script>var tracked = true;</script>
	  <script type="text/javascript">legacy();</script>
	  <script type="module">import x from "y";</script>
	  <script type="application/ld+json">{"@type":"Organization"}</script>
	  <button onclick="doThing()">Go</button>
	  <img src="/pic.png" onerror="report()" onload="count()">
	</body></html>`

	out := apply(t, newTestTransformer(""), markup)

	require.NotContains(t, out, "/js/app.js")
	require.NotContains(t, out, "tracked")
	require.NotContains(t, out, "legacy")
	require.NotContains(t, out, "import x")
	require.Contains(t, out, `"@type":"Organization"`, "non-JavaScript script types survive")
	require.NotContains(t, out, "onclick")
	require.NotContains(t, out, "onerror")
	require.NotContains(t, out, "onload")
	require.Contains(t, out, "<button")
}

func TestApplyRewritesReferences(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
	  <a href="https://example.org/about?tab=1#team">About</a>
	  <a href="https://other.example.net/page">External</a>
	  <a href="mailto:hello@example.org">Mail</a>
	  <a href="#top">Top</a>
	  <img src="/sites/default/files/pic.jpg">
	  <img src="/banner.png" srcset="/sites/default/files/b.jpg 1x, https://example.org/c.jpg 2x">
	</body></html>`

	out := apply(t, newTestTransformer(""), markup)

	require.Contains(t, out, `href="/about?tab=1#team"`)
	require.Contains(t, out, `href="https://other.example.net/page"`, "foreign hosts stay absolute")
	require.Contains(t, out, `href="mailto:hello@example.org"`)
	require.Contains(t, out, `href="#top"`)
	require.Contains(t, out, `src="/files/pic.jpg"`)
	require.Contains(t, out, `srcset="/files/b.jpg 1x, /c.jpg 2x"`)
}

func TestApplyReplacesFlaggedElements(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
	  <form action="/webform/request" method="post"><input name="q"></form>
	  <iframe src="https://example.org/Webform_embed/42"></iframe>
	  <a href="/request">Open the webform</a>
	  <a href="/about">About</a>
	  <form action="/search"><input name="s"></form>
	</body></html>`

	out := apply(t, newTestTransformer("webform"), markup)

	require.NotContains(t, out, "/webform/request")
	require.NotContains(t, out, "Webform_embed")
	require.NotContains(t, out, "Open the webform")
	require.Contains(t, out, `href="/about"`)
	require.Contains(t, out, `action="/search"`, "unflagged forms survive")
	require.Equal(t, 3, strings.Count(out, `class="archived-feature"`))
	require.Contains(t, out, `href="/contact-us"`)
}

func TestApplyEmptyMarkerDisablesReplacement(t *testing.T) {
	t.Parallel()

	markup := `<html><body><form action="/webform/request"><input></form></body></html>`

	out := apply(t, newTestTransformer(""), markup)

	require.Contains(t, out, `action="/webform/request"`)
	require.NotContains(t, out, "archived-feature")
}

func TestApplyRemovesAdminChrome(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
	  <div id="admin-menu"><a href="/admin/config">Config</a></div>
	  <ul>
	    <li><a href="/admin/content">Content</a></li>
	    <li><a href="/about">About</a></li>
	  </ul>
	  <a href="https://example.org/node/5/edit">Edit this page</a>
	  <a href="/user/logout">Log out</a>
	  <a href="/news/5">News item</a>
	</body></html>`

	out := apply(t, newTestTransformer(""), markup)

	require.NotContains(t, out, "admin-menu")
	require.NotContains(t, out, "/admin/content", "list item goes with its admin anchor")
	require.NotContains(t, out, "Edit this page")
	require.NotContains(t, out, "/user/logout")
	require.Contains(t, out, `href="/about"`)
	require.Contains(t, out, `href="/news/5"`)
}

func TestApplyCleanup(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
	  <!-- generator: cms 9.4 -->
	  <div class="wrapper"><p>   </p></div>
	  <div class="media"><img src="/pic.png"></div>
	  <table><tr><td align="left" valign="top" bgcolor="#ffffff">cell</td></tr></table>
	</body></html>`

	out := apply(t, newTestTransformer(""), markup)

	require.NotContains(t, out, "generator: cms")
	require.NotContains(t, out, `class="wrapper"`, "emptied wrappers cascade away")
	require.Contains(t, out, `class="media"`, "elements with children stay")
	require.NotContains(t, out, "align=")
	require.NotContains(t, out, "valign=")
	require.NotContains(t, out, "bgcolor=")
	require.Contains(t, out, ">cell<")
}

func TestApplyStepOrderFlaggedBeforeChromeRemoval(t *testing.T) {
	t.Parallel()

	// An anchor that is both marker-flagged and admin-pathed gets the
	// notice, not silent removal.
	markup := `<html><body><a href="/admin/webform/results">Webform results</a></body></html>`

	out := apply(t, newTestTransformer("webform"), markup)

	require.Contains(t, out, "archived-feature")
	require.NotContains(t, out, "/admin/webform/results")
}

func TestApplyRejectsNothingOnMalformedFragments(t *testing.T) {
	t.Parallel()

	// The HTML parser is forgiving; stray tags still produce a document.
	out := apply(t, newTestTransformer(""), `<p>unclosed <b>bold`)
	require.Contains(t, out, "unclosed")
}
