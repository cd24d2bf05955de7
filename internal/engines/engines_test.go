package engines

import (
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(list []Engine) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Name
	}
	return out
}

func TestDefaults(t *testing.T) {
	s := NewMemoryStore()
	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Google Images", "Baidu", "Yandex", "TinEye"}, names(list))
	for _, e := range list {
		assert.True(t, e.Enabled)
	}

	e, err := s.Get("yandex")
	require.NoError(t, err)
	assert.Equal(t, "https://yandex.com/images/search?rpt=imageview&url=", e.URL)
}

func TestAdd(t *testing.T) {
	s := NewMemoryStore()
	e, err := s.Add("  Sogou  ", " https://pic.sogou.com/ris?query= ")
	require.NoError(t, err)
	assert.Equal(t, "Sogou", e.Name)
	assert.Equal(t, "https://pic.sogou.com/ris?query=", e.URL)
	assert.True(t, e.Enabled)
	assert.Len(t, e.ID, 36)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 5)
	assert.Equal(t, e, list[4])
}

func TestAdd_Validation(t *testing.T) {
	s := NewMemoryStore()
	cases := []struct {
		name, url string
		want      error
	}{
		{"", "https://x.test/?u=", ErrInvalid},
		{"X", "   ", ErrInvalid},
		{"X", "ftp://x.test/?u=", ErrInvalid},
		{"Yandex", "https://other.test/?u=", ErrDuplicate},
		{"New", "https://www.tineye.com/search?url=", ErrDuplicate},
	}
	for _, tc := range cases {
		_, err := s.Add(tc.name, tc.url)
		assert.ErrorIs(t, err, tc.want, "%q %q", tc.name, tc.url)
	}

	// Names compare exactly.
	_, err := s.Add("yandex", "https://other.test/?u=")
	assert.NoError(t, err)
}

func TestEdit(t *testing.T) {
	s := NewMemoryStore()
	e, err := s.Edit("tineye", "TinEye Reverse", "https://www.tineye.com/search?url=")
	require.NoError(t, err, "keeping its own URL is not a duplicate")
	assert.Equal(t, "TinEye Reverse", e.Name)

	_, err = s.Edit("tineye", "Baidu", "https://www.tineye.com/search?url=")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.Edit("missing", "A", "https://a.test/")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Edit("tineye", "A", "tineye.com")
	assert.ErrorIs(t, err, ErrInvalid)

	got, err := s.Get("tineye")
	require.NoError(t, err)
	assert.Equal(t, "TinEye Reverse", got.Name)
}

func TestDeleteToggleReset(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Delete("baidu"))
	assert.ErrorIs(t, s.Delete("baidu"), ErrNotFound)

	e, err := s.Toggle("google")
	require.NoError(t, err)
	assert.False(t, e.Enabled)
	_, err = s.Toggle("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	enabled, err := s.Enabled()
	require.NoError(t, err)
	assert.Equal(t, []string{"Yandex", "TinEye"}, names(enabled))

	defaults, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), defaults)
	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), list)
}

func TestAddTemplate(t *testing.T) {
	s := NewMemoryStore()
	e, err := s.AddTemplate("Bing")
	require.NoError(t, err)
	assert.Equal(t, Templates["bing"].URL, e.URL)

	_, err = s.AddTemplate("bing")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.AddTemplate("google")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = s.AddTemplate("altavista")
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	assert.Equal(t, []string{"baidu", "bing", "google", "tineye", "yandex"}, TemplateKeys())
}

func TestFindByName(t *testing.T) {
	s := NewMemoryStore()
	e, err := s.FindByName("tineye")
	require.NoError(t, err)
	assert.Equal(t, "tineye", e.ID)
	_, err = s.FindByName("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistence(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/home/user/.config/qrlens/engines.yaml"

	s := NewStore(fsys, path)
	_, err := s.Add("Custom", "https://custom.test/?img=")
	require.NoError(t, err)
	_, err = s.Toggle("baidu")
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engines:")
	assert.Contains(t, string(data), "name: Custom")

	reopened, err := NewStore(fsys, path).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Google Images", "Baidu", "Yandex", "TinEye", "Custom"}, names(reopened))
	assert.False(t, reopened[1].Enabled)

	// No temp files are left behind.
	entries, err := afero.ReadDir(fsys, "/home/user/.config/qrlens")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "engines.yaml", []byte("engines: [oops"), 0o644))
	_, err := NewStore(fsys, "engines.yaml").List()
	assert.ErrorContains(t, err, "parse engines")
}

func TestConcurrentAdds(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(fmt.Sprintf("engine %d", i), fmt.Sprintf("https://e%d.test/?u=", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 24)
}

func TestSearchURL(t *testing.T) {
	e := Engine{Name: "TinEye", URL: "https://www.tineye.com/search?url=", Enabled: true}
	got := SearchURL(e, "https://example.org/a b/cat.jpg?size=large&x=1")
	assert.Equal(t, "https://www.tineye.com/search?url=https%3A%2F%2Fexample.org%2Fa%20b%2Fcat.jpg%3Fsize%3Dlarge%26x%3D1", got)

	assert.Equal(t, "-_.!~*'()", encodeURIComponent("-_.!~*'()"))
	assert.Equal(t, "%C3%BC%2B", encodeURIComponent("ü+"))
}

func TestSearchLinks(t *testing.T) {
	list := Defaults()
	list[1].Enabled = false
	links := SearchLinks(list, "http://img.test/x.png")
	require.Len(t, links, 3)
	assert.Equal(t, "Google Images", links[0].Engine)
	assert.Equal(t, "https://www.google.com/searchbyimage?image_url=http%3A%2F%2Fimg.test%2Fx.png", links[0].URL)
}
