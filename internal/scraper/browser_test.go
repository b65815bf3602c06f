package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func documentResponse(loader cdp.LoaderID, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		LoaderID: loader,
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: status},
	}
}

func lifecycle(loader cdp.LoaderID, name string) *page.EventLifecycleEvent {
	return &page.EventLifecycleEvent{LoaderID: loader, Name: name}
}

func TestNavigationWatcherReleasesOnDOMContentLoaded(t *testing.T) {
	w := newNavigationWatcher()
	done := make(chan int64, 1)
	go func() {
		status, err := w.wait(context.Background(), "L1")
		assert.NoError(t, err)
		done <- status
	}()

	w.handle(documentResponse("L1", 200))
	w.handle(lifecycle("L1", "init"))
	select {
	case <-done:
		t.Fatal("released before the document was parsed")
	case <-time.After(20 * time.Millisecond):
	}

	// The load event is never needed.
	w.handle(lifecycle("L1", "DOMContentLoaded"))
	select {
	case status := <-done:
		assert.Equal(t, int64(200), status)
	case <-time.After(time.Second):
		t.Fatal("not released on DOMContentLoaded")
	}
}

func TestNavigationWatcherTracksLoaderAndDocumentOnly(t *testing.T) {
	w := newNavigationWatcher()

	// Subresources and other loaders do not affect the navigation.
	w.handle(&network.EventResponseReceived{LoaderID: "L1", Type: network.ResourceTypeImage, Response: &network.Response{Status: 404}})
	w.handle(documentResponse("L0", 500))
	w.handle(lifecycle("L0", "DOMContentLoaded"))
	w.handle(documentResponse("L1", 403))
	w.handle(lifecycle("L1", "DOMContentLoaded"))

	status, err := w.wait(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, int64(403), status)

	var se *StatusError
	require.True(t, errors.As(checkDocumentStatus(status), &se))
	assert.Equal(t, 403, se.StatusCode())
	assert.NoError(t, checkDocumentStatus(204))
	assert.NoError(t, checkDocumentStatus(0))
}

func TestNavigationWatcherHonorsContext(t *testing.T) {
	w := newNavigationWatcher()
	w.handle(documentResponse("L1", 200))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := w.wait(ctx, "L1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
