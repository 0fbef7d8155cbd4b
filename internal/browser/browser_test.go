package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "ru-RU", opts.Locale)
	assert.Equal(t, "Europe/Moscow", opts.TimezoneID)
}

func noSleep(context.Context, time.Duration) error { return nil }

func testNavigator(retries int) *Navigator {
	n := NewNavigator(retries, nil)
	n.Sleep = noSleep
	return n
}

func TestNavigateWithRetryRecovers(t *testing.T) {
	var calls int32
	page := NewStaticPage(func(_ context.Context, u string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("net::ERR_CONNECTION_RESET")
		}
		return "<html><head><title>Каталог</title></head><body></body></html>", nil
	})

	err := testNavigator(3).NavigateWithRetry(context.Background(), page, "https://www.wildberries.ru/catalog/x")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, "https://www.wildberries.ru/catalog/x", page.URL())
}

func TestNavigateWithRetryBlocked(t *testing.T) {
	page := NewStaticPage(MapLoader(map[string]string{
		"https://www.wildberries.ru/": "<html><head><title>Почти готово...</title></head></html>",
	}))

	err := testNavigator(2).NavigateWithRetry(context.Background(), page, "https://www.wildberries.ru/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestCheckBlocked(t *testing.T) {
	ok, err := StaticPageFromHTML("https://www.wildberries.ru/", "<title>Интернет-магазин</title>")
	require.NoError(t, err)
	assert.NoError(t, CheckBlocked(ok))

	blocked, err := StaticPageFromHTML("https://www.wildberries.ru/", "<title>Подозрительная активность</title>")
	require.NoError(t, err)
	assert.ErrorIs(t, CheckBlocked(blocked), ErrBlocked)
}

type scrollRecorder struct {
	*StaticPage
	offsets []int
}

func (s *scrollRecorder) Scroll(_ context.Context, dy int) error {
	s.offsets = append(s.offsets, dy)
	return nil
}

func TestHumanizeScroll(t *testing.T) {
	page := &scrollRecorder{StaticPage: NewStaticPage(MapLoader(nil))}

	require.NoError(t, HumanizeScroll(context.Background(), page, 5, time.Second, noSleep))

	require.Len(t, page.offsets, 5)
	for _, dy := range page.offsets {
		assert.GreaterOrEqual(t, dy, 500)
		assert.LessOrEqual(t, dy, 1000)
	}
}
