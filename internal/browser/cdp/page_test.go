package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/editbox"
	"github.com/xkilldash9x/boxedit/internal/replay"
	"github.com/xkilldash9x/boxedit/internal/script"
)

const maxBrowsers = 2

var (
	browserSemaphore     *semaphore.Weighted
	browserSemaphoreOnce sync.Once
)

// limitBrowsers bounds how many Chrome processes the package's tests run
// at once.
func limitBrowsers(t *testing.T) {
	t.Helper()
	browserSemaphoreOnce.Do(func() {
		n := int64(runtime.GOMAXPROCS(0))
		if n > maxBrowsers {
			n = maxBrowsers
		}
		browserSemaphore = semaphore.NewWeighted(n)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, browserSemaphore.Acquire(ctx, 1), "waiting for a browser slot")
	t.Cleanup(func() { browserSemaphore.Release(1) })
}

// chromePath returns a Chrome binary or skips the test.
func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("BOXEDIT_BROWSER_EXEC_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium binary found")
	return ""
}

const stagePage = `<!doctype html><html><body style="margin: 0">
<div id="stage" style="position: absolute; left: 0px; top: 0px; width: 1000px; height: 500px;">
	<div id="spine" style="position: absolute; left: 50%; top: 50%; width: 20%; height: 20%; transform: translate(-50%, -50%);"></div>
</div>
</body></html>`

func openStage(t *testing.T) *Page {
	t.Helper()
	exe := chromePath(t)
	limitBrowsers(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(stagePage))
	}))
	t.Cleanup(srv.Close)

	cfg := config.NewDefaultConfig().Browser()
	cfg.ExecPath = exe
	cfg.Timeout = 30 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	page, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(page.Close)
	require.NoError(t, page.Navigate(ctx, srv.URL))
	return page
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, `"a\"b"`, literal(`a"b`))
	assert.Equal(t, "600.5", literal(600.5))
	assert.Equal(t, `const el = R.get("x"); el.style.setProperty("left", "50%");`,
		js(`const el = R.get(%s); el.style.setProperty(%s, %s);`, "x", "left", "50%"))
}

func TestPageElements(t *testing.T) {
	page := openStage(t)
	ctx := context.Background()

	spine, err := page.Find(ctx, "#spine")
	require.NoError(t, err)
	again, err := page.Find(ctx, "#spine")
	require.NoError(t, err)
	assert.Same(t, spine, again, "a node maps to one Element")

	assert.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 200, Height: 100}, spine.BoundingClientRect())
	assert.Equal(t, "50%", spine.Style("left"))
	assert.True(t, spine.IsConnected())

	parent := spine.Parent()
	require.NotNil(t, parent)
	assert.Equal(t, "stage", parent.Attr("id"))

	require.NoError(t, spine.SetStyle("left", "60%"))
	assert.Equal(t, schemas.Rect{Left: 500, Top: 200, Width: 200, Height: 100}, spine.BoundingClientRect())
	require.NoError(t, spine.SetStyle("left", ""))
	assert.Equal(t, "", spine.Style("left"))

	_, err = page.Find(ctx, "#missing")
	assert.Error(t, err)
}

func TestPageCreateAndHitTest(t *testing.T) {
	page := openStage(t)

	box, err := page.CreateElement("div")
	require.NoError(t, err)
	require.NoError(t, box.SetAttr("style", "position: fixed; left: 10px; top: 10px; width: 50px; height: 50px; z-index: 5;"))
	assert.ErrorIs(t, box.SetStyle("left", "20px"), schemas.ErrDetached)
	assert.False(t, box.IsConnected())

	child, err := page.CreateElement("span")
	require.NoError(t, err)
	require.NoError(t, box.(*Element).AppendElement(child))
	assert.Error(t, child.(*Element).AppendElement(box), "no cycles")

	require.NoError(t, page.AppendToRoot(box))
	assert.Error(t, page.AppendToRoot(box), "already attached")
	assert.True(t, box.IsConnected())
	assert.Same(t, box, page.ElementFromPoint(30, 30))

	var got schemas.InputEvent
	remove := page.AddEventListener(schemas.EventPointerDown, func(ev schemas.InputEvent) { got = ev })
	require.NoError(t, page.Dispatch(context.Background(), schemas.InputEvent{Type: schemas.EventPointerDown, PointerID: 1, X: 30, Y: 30}))
	remove()
	assert.Same(t, box, got.Target)

	require.NoError(t, page.RemoveElement(box))
	assert.False(t, box.IsConnected())
	assert.Nil(t, page.ElementFromPoint(-10, -10))
}

func TestReplayOnChrome(t *testing.T) {
	page := openStage(t)
	s, err := script.ParseBytes([]byte(`
target: "#spine"
steps:
  - {pointer: down, handle: se}
  - {pointer: move, by: [50, 20]}
  - {pointer: up}
`))
	require.NoError(t, err)

	runner := replay.NewRunner(config.NewDefaultConfig(), zaptest.NewLogger(t), nil)
	report, err := runner.Run(context.Background(), page, s)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, editbox.ModeIdle, report.Mode)
	require.NotNil(t, report.Committed)
	assert.Equal(t, schemas.PercentCSS{Left: "52.5%", Top: "52.0%", Width: "25.0%", Height: "24.0%"}, *report.Committed)
	assert.Equal(t, schemas.Rect{Left: 400, Top: 200, Width: 250, Height: 120}, report.Rect)
}
