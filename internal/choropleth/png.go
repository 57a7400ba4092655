package choropleth

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes the headless browser once per process so
// callers fail fast instead of timing out per export.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderHTMLToPNG loads the document in a headless browser via a data URI
// and captures a full-page screenshot. The short sleep gives the chart
// runtime time to register the geometry and paint.
func RenderHTMLToPNG(ctx context.Context, html []byte, width, height int, timeout time.Duration) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
