// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's httpBodyWrapper lazy span-logging idiom
// (httpBodyStreamStart on first Read, httpBodyStreamDone on Close).

package httpsrc

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/internal/capplog"
)

// httpBodyWrap wraps an HTTP response body so the driver emits structured
// log events lazily: httpBodyStreamStart on the first Read, and
// httpBodyStreamDone on Close (only if at least one Read happened).
func httpBodyWrap(
	body io.ReadCloser,
	classifier capperr.Classifier,
	logger capplog.Logger,
	url string,
	timeNow func() time.Time,
) io.ReadCloser {
	return &httpBodyWrapper{
		body:       body,
		classifier: classifier,
		logger:     logger,
		url:        url,
		timeNow:    timeNow,
	}
}

type httpBodyWrapper struct {
	// body is the actual response body.
	body io.ReadCloser

	// didRead tracks whether at least one Read happened.
	didRead atomic.Bool

	// classifier maps the close error onto a capperr.Kind for logging.
	classifier capperr.Classifier

	// logger is the span logger in use.
	logger capplog.Logger

	// url is the request URL, carried for correlation across the two
	// log events.
	url string

	// closeOnce ensures Close has "once" semantics.
	closeOnce sync.Once

	// readOnce ensures httpBodyStreamStart logs only once.
	readOnce sync.Once

	// t0 is the time the first Read happened.
	t0 time.Time

	// timeNow mocks time.Now.
	timeNow func() time.Time
}

var _ io.ReadCloser = &httpBodyWrapper{}

// Close implements [io.ReadCloser].
func (b *httpBodyWrapper) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if b.didRead.Load() { // acquire: t0 is visible if this returns true
			b.logger.Info("httpBodyStreamDone",
				"err", err,
				"errClass", b.classifier.Classify(err),
				"httpUrl", b.url,
				"t0", b.t0,
				"t", b.timeNow(),
			)
		}
	})
	return
}

// Read implements [io.ReadCloser].
func (b *httpBodyWrapper) Read(buffer []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.timeNow()    // write t0 BEFORE the atomic store (release)
		b.didRead.Store(true) // release: makes t0 visible to Close
		b.logger.Info("httpBodyStreamStart", "httpUrl", b.url, "t", b.t0)
	})
	return b.body.Read(buffer)
}
