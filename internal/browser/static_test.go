package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticPageClickFollowsLinks(t *testing.T) {
	page := NewStaticPage(MapLoader(map[string]string{
		"https://www.wildberries.ru/catalog/1/detail.aspx": `<a class="seller" href="/seller/77">Магазин</a><span class="x">no link</span>`,
		"https://www.wildberries.ru/seller/77":             `<title>Продавец</title>`,
	}))
	require.NoError(t, page.Goto(context.Background(), "https://www.wildberries.ru/catalog/1/detail.aspx"))

	spans, err := page.FindAll(CSS, "span.x")
	require.NoError(t, err)
	require.NoError(t, spans[0].Click())
	assert.Equal(t, "https://www.wildberries.ru/catalog/1/detail.aspx", page.URL())

	links, err := page.FindAll(CSS, "a.seller")
	require.NoError(t, err)
	require.NoError(t, links[0].ClickJS())
	assert.Equal(t, "https://www.wildberries.ru/seller/77", page.URL())

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Продавец", title)
}

func TestStaticElementLookups(t *testing.T) {
	page, err := StaticPageFromHTML("https://www.wildberries.ru/", `<div class="card" data-nm-id="9">
		<a href="/catalog/9/detail.aspx"><span class="goods-name">Сковорода</span></a>
	</div><span class="goods-name">outside</span>`)
	require.NoError(t, err)

	cards, err := page.FindAll(CSS, ".card")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	tag, err := cards[0].TagName()
	require.NoError(t, err)
	assert.Equal(t, "div", tag)

	names, err := cards[0].FindAll(XPath, "//span[@class='goods-name']")
	require.NoError(t, err)
	require.Len(t, names, 1)
	text, err := names[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Сковорода", text)

	nm, err := cards[0].Attr("data-nm-id")
	require.NoError(t, err)
	assert.Equal(t, "9", nm)
}

func TestStaticPageWithoutDocument(t *testing.T) {
	_, err := NewStaticPage(MapLoader(nil)).FindAll(CSS, "a")
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://www.wildberries.ru/seller/1", ResolveURL("https://www.wildberries.ru/catalog/2/detail.aspx", "/seller/1"))
	assert.Equal(t, "https://other.ru/x", ResolveURL("https://www.wildberries.ru/", "https://other.ru/x"))
	assert.Equal(t, "/seller/1", ResolveURL("", "/seller/1"))
	assert.Equal(t, "", ResolveURL("https://www.wildberries.ru/", ""))
}

func TestHTTPLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "agent-1", r.Header.Get("User-Agent"))
		assert.Equal(t, "ru-RU", r.Header.Get("Accept-Language"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><title>Каталог</title></head></html>`))
	}))
	t.Cleanup(srv.Close)

	page := NewStaticPage(HTTPLoader(srv.Client(), []string{"agent-1"}, "ru-RU"))
	require.NoError(t, page.Goto(context.Background(), srv.URL+"/catalog"))

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Каталог", title)

	err = page.Goto(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status 404")
}
