package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
)

const describeJS = `(() => {
	const m = document.querySelector('meta[name="description" i]');
	return m ? (m.getAttribute('content') || '') : '';
})()`

// BrowserRetriever renders pages in a fresh headless Chrome per call.
type BrowserRetriever struct {
	timeout  time.Duration
	execPath string
	logger   *zap.Logger
}

func NewBrowserRetriever(timeout time.Duration, execPath string, logger *zap.Logger) *BrowserRetriever {
	return &BrowserRetriever{timeout: timeout, execPath: execPath, logger: logger.Named("browser")}
}

// Retrieve navigates to rawURL and returns the rendered HTML along with the
// title and meta description read from the DOM. The browser is torn down on
// every return path.
func (b *BrowserRetriever) Retrieve(ctx context.Context, rawURL string, p *domain.ProxyEndpoint, userAgent string) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	if p != nil {
		opts = append(opts, chromedp.ProxyServer("http://"+p.Addr()))
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if p != nil && p.HasAuth() {
		listenForProxyAuth(browserCtx, p, b.logger)
		if err := chromedp.Run(browserCtx, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
			return Page{}, fmt.Errorf("enable proxy auth: %w", err)
		}
	}

	watcher := newNavigationWatcher()
	chromedp.ListenTarget(browserCtx, watcher.handle)

	var out Page
	err := chromedp.Run(browserCtx,
		navigateToDOMReady(rawURL, watcher),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&out.Title),
		chromedp.Evaluate(describeJS, &out.Description),
		chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return Page{}, err
	}
	return out, nil
}

// navigateToDOMReady starts a navigation and returns once the document has
// been parsed, without waiting for images, fonts or third-party scripts.
func navigateToDOMReady(rawURL string, w *navigationWatcher) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, loaderID, errText, _, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}
		// Same-document navigations have no loader.
		if loaderID == "" {
			return nil
		}
		status, err := w.wait(ctx, loaderID)
		if err != nil {
			return err
		}
		return checkDocumentStatus(status)
	}
}

// checkDocumentStatus accepts 2xx and an unknown (zero) status.
func checkDocumentStatus(status int64) error {
	if status != 0 && (status < 200 || status > 299) {
		return &StatusError{Code: int(status)}
	}
	return nil
}

// navigationWatcher tracks the main document response and DOMContentLoaded
// per loader. handle runs on the target's event loop and must not block.
type navigationWatcher struct {
	mu      sync.Mutex
	status  map[cdp.LoaderID]int64
	ready   map[cdp.LoaderID]bool
	changed chan struct{}
}

func newNavigationWatcher() *navigationWatcher {
	return &navigationWatcher{
		status:  make(map[cdp.LoaderID]int64),
		ready:   make(map[cdp.LoaderID]bool),
		changed: make(chan struct{}, 1),
	}
}

func (w *navigationWatcher) handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		w.mu.Lock()
		w.status[e.LoaderID] = e.Response.Status
		w.mu.Unlock()
	case *page.EventLifecycleEvent:
		if e.Name != "DOMContentLoaded" {
			return
		}
		w.mu.Lock()
		w.ready[e.LoaderID] = true
		w.mu.Unlock()
	default:
		return
	}

	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// wait blocks until loaderID reached DOMContentLoaded and returns the
// document's HTTP status, or 0 when no document response was seen.
func (w *navigationWatcher) wait(ctx context.Context, loaderID cdp.LoaderID) (int64, error) {
	for {
		w.mu.Lock()
		ready, status := w.ready[loaderID], w.status[loaderID]
		w.mu.Unlock()
		if ready {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-w.changed:
		}
	}
}

// listenForProxyAuth answers proxy auth challenges and releases every request
// paused by the Fetch domain.
func listenForProxyAuth(ctx context.Context, p *domain.ProxyEndpoint, logger *zap.Logger) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}
				if err := chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, resp)); err != nil {
					logger.Debug("continue with auth failed", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				if err := chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID)); err != nil {
					logger.Debug("continue request failed", zap.Error(err))
				}
			}()
		}
	})
}
