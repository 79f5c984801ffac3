// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's HTTPConn.RoundTrip span-logging idiom
// (httpRoundTripStart/httpRoundTripDone around each round trip, lazy body
// wrap on the response) — rebuilt over a plain [http.RoundTripper] instead
// of a hand-dialed [net.Conn], since this driver only ever needs a normal
// HTTP client, not connection-level DNS/TLS instrumentation.
package httpsrc

import (
	"net/http"
	"time"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/internal/capplog"
)

// loggingTransport wraps an [http.RoundTripper] with the span-logging and
// lazy body-streaming events used by every http_single/http_batch request.
type loggingTransport struct {
	next       http.RoundTripper
	classifier capperr.Classifier
	logger     capplog.Logger
	timeNow    func() time.Time
}

var _ http.RoundTripper = &loggingTransport{}

func newLoggingTransport(logger capplog.Logger) *loggingTransport {
	return &loggingTransport{
		next:       http.DefaultTransport,
		classifier: capperr.DefaultClassifier(capperr.SourceFail),
		logger:     logger,
		timeNow:    time.Now,
	}
}

// RoundTrip implements [http.RoundTripper].
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := t.timeNow()
	deadline, _ := req.Context().Deadline()
	t.logger.Info("httpRoundTripStart",
		"deadline", deadline,
		"httpMethod", req.Method,
		"httpUrl", req.URL.String(),
		"t", t0,
	)

	resp, err := t.next.RoundTrip(req)

	var statusCode int
	if resp != nil {
		statusCode = resp.StatusCode
	}
	t.logger.Info("httpRoundTripDone",
		"deadline", deadline,
		"err", err,
		"errClass", t.classifier.Classify(err),
		"httpMethod", req.Method,
		"httpUrl", req.URL.String(),
		"httpResponseStatusCode", statusCode,
		"t0", t0,
		"t", t.timeNow(),
	)
	if err != nil {
		return nil, err
	}

	resp.Body = httpBodyWrap(resp.Body, t.classifier, t.logger, req.URL.String(), t.timeNow)
	return resp, nil
}

// newClient builds an *http.Client instrumented with loggingTransport,
// the one HTTP client construction path shared by http_single and
// http_batch.
func newClient(logger capplog.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newLoggingTransport(logger),
		Timeout:   timeout,
	}
}
