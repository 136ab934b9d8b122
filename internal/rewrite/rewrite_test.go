package rewrite

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	t.Parallel()

	r := New("example.org")

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{
			name: "cms files path remapped",
			ref:  "/sites/default/files/logo.png",
			want: "/files/logo.png",
		},
		{
			name: "absolute same domain reduced",
			ref:  "https://example.org/about",
			want: "/about",
		},
		{
			name: "absolute with www reduced",
			ref:  "https://www.example.org/about",
			want: "/about",
		},
		{
			name: "absolute with port reduced",
			ref:  "http://example.org:8080/about",
			want: "/about",
		},
		{
			name: "query and fragment preserved",
			ref:  "https://example.org/search?q=term#results",
			want: "/search?q=term#results",
		},
		{
			name: "absolute cms path reduced and remapped",
			ref:  "https://example.org/sites/default/files/docs/report.pdf",
			want: "/files/docs/report.pdf",
		},
		{
			name: "foreign domain passes through",
			ref:  "https://cdn.other.net/lib.js",
			want: "https://cdn.other.net/lib.js",
		},
		{
			name: "foreign domain still gets cms remap",
			ref:  "https://mirror.other.net/sites/default/files/a.png",
			want: "https://mirror.other.net/files/a.png",
		},
		{
			name: "subdomain is not same domain",
			ref:  "https://blog.example.org/post",
			want: "https://blog.example.org/post",
		},
		{
			name: "relative reference untouched",
			ref:  "about/team",
			want: "about/team",
		},
		{
			name: "root reduced to slash",
			ref:  "https://example.org",
			want: "/",
		},
		{
			name: "protocol relative same domain reduced",
			ref:  "//www.example.org/css/site.css",
			want: "/css/site.css",
		},
		{
			name: "fragment only untouched",
			ref:  "#top",
			want: "#top",
		},
		{
			name: "mailto untouched",
			ref:  "mailto:info@example.org",
			want: "mailto:info@example.org",
		},
		{
			name: "data uri untouched",
			ref:  "data:image/png;base64,iVBORw0KGgo=",
			want: "data:image/png;base64,iVBORw0KGgo=",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, r.Rewrite(tt.ref))
		})
	}
}

// TestRewriteAndSavePathAgree pins the guarantee that markup references and
// on-disk locations come from the same mapping.
func TestRewriteAndSavePathAgree(t *testing.T) {
	t.Parallel()

	r := New("example.org")

	for _, src := range []string{
		"/sites/default/files/img.png",
		"https://www.example.org/sites/default/files/img.png",
	} {
		require.Equal(t, "/files/img.png", r.Rewrite(src), "markup reference for %s", src)
		got, ok := r.SavePath(src)
		require.True(t, ok, "save path for %s", src)
		require.Equal(t, "files/img.png", got, "disk path for %s", src)
	}
}

func TestSavePath(t *testing.T) {
	t.Parallel()

	r := New("example.org")

	tests := []struct {
		name   string
		ref    string
		want   string
		wantOK bool
	}{
		{
			name:   "query stripped from disk path",
			ref:    "/css/site.css?v=12",
			want:   "css/site.css",
			wantOK: true,
		},
		{
			name:   "fragment stripped from disk path",
			ref:    "/js/app.js#main",
			want:   "js/app.js",
			wantOK: true,
		},
		{
			name:   "same domain absolute",
			ref:    "https://example.org/files/report.pdf",
			want:   "files/report.pdf",
			wantOK: true,
		},
		{
			name:   "foreign domain has no local path",
			ref:    "https://cdn.other.net/lib.js",
			wantOK: false,
		},
		{
			name:   "empty path has no local path",
			ref:    "https://example.org",
			wantOK: false,
		},
		{
			name:   "directory style path rejected",
			ref:    "/files/",
			wantOK: false,
		},
		{
			name:   "special scheme rejected",
			ref:    "data:image/png;base64,AAAA",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := r.SavePath(tt.ref)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRewriteSrcset(t *testing.T) {
	t.Parallel()

	r := New("example.org")

	in := "https://example.org/sites/default/files/a.png 1x, /sites/default/files/b.png 2x , https://cdn.other.net/c.png 800w"
	want := "/files/a.png 1x, /files/b.png 2x, https://cdn.other.net/c.png 800w"
	require.Equal(t, want, r.RewriteSrcset(in))

	// A single candidate without a descriptor keeps its bare form.
	require.Equal(t, "/files/a.png", r.RewriteSrcset("/sites/default/files/a.png"))
}

func TestSrcsetURLs(t *testing.T) {
	t.Parallel()

	urls := SrcsetURLs("/img/a.png 1x, /img/b.png 2x,, /img/c.png")
	require.Equal(t, []string{"/img/a.png", "/img/b.png", "/img/c.png"}, urls)
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	r := New("www.example.org:8080")
	require.Equal(t, "example.org", r.Host())

	require.True(t, r.SameDomain("https://example.org/about"))
	require.True(t, r.SameDomain("https://www.example.org/about"))
	require.True(t, r.SameDomain("http://example.org:9090/other"))
	require.False(t, r.SameDomain("https://blog.example.org/post"))
	require.False(t, r.SameDomain("https://other.net/"))
	require.False(t, r.SameDomain("/relative/only"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.org/news/2024/")
	require.NoError(t, err)

	got, ok := Resolve(base, "article.html")
	require.True(t, ok)
	require.Equal(t, "https://example.org/news/2024/article.html", got)

	got, ok = Resolve(base, "/about#team")
	require.True(t, ok)
	require.Equal(t, "https://example.org/about", got)

	got, ok = Resolve(base, "https://other.net")
	require.True(t, ok)
	require.Equal(t, "https://other.net/", got)

	for _, ref := range []string{"", "#top", "mailto:x@y.z", "javascript:void(0)", "tel:+1555", "ftp://example.org/file"} {
		_, ok := Resolve(base, ref)
		require.False(t, ok, "expected %q to be dropped", ref)
	}
}
