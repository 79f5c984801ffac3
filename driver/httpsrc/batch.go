// SPDX-License-Identifier: GPL-3.0-or-later

package httpsrc

import (
	"fmt"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
	"golang.org/x/sync/errgroup"
)

// BatchBuilder adapts [BatchSource] to [config.SourceBuilder] for the
// http_batch kind (§4.4): N parallel requests, one per input row's
// UrlColumn value, bounded by MaxThreads.
func BatchBuilder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	urlColumn := stringOption(spec.Options, "url_column", "")
	if urlColumn == "" {
		return nil, fmt.Errorf("httpsrc: source %q: missing required option %q", spec.Name, "url_column")
	}
	input, _ := args["input"].(string)
	output, _ := args["output"].(string)
	if input == "" || output == "" {
		return nil, fmt.Errorf("httpsrc: source %q: stage needs both input and output cells", spec.Name)
	}
	src := &BatchSource{
		Name:           spec.Name,
		URLColumn:      urlColumn,
		URLTemplate:    stringOption(spec.Options, "url_template", "{}"),
		Method:         stringOption(spec.Options, "method", "GET"),
		Headers:        headerOption(spec.Options, "headers"),
		ResponseColumn: stringOption(spec.Options, "response_column", "output"),
		MaxThreads:     intOption(spec.Options, "max_threads", 8),
		Input:          input,
		Output:         output,
	}
	return src.Task(), nil
}

// BatchSource implements the http_batch source kind (§4.4): one request
// per row of the Input Frame, run with bounded parallelism, collected
// into one row of the Output Frame each.
type BatchSource struct {
	Name           string
	URLColumn      string
	URLTemplate    string
	Method         string
	Headers        map[string]string
	ResponseColumn string
	MaxThreads     int
	Input          string
	Output         string
}

// Task adapts BatchSource to the [registry.Task] dispatch signature.
func (s *BatchSource) Task() registry.Task {
	return func(rc registry.Context) error {
		in, err := readInputFrame(rc, s.Input)
		if err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		col, ok := in.Column(s.URLColumn)
		if !ok {
			return capperr.New(capperr.SourceFail, rc.StageLabel(),
				fmt.Errorf("httpsrc: %s: column %q not found on input", s.Name, s.URLColumn))
		}

		client := newClient(rc.Logger(), defaultTimeout)
		results := make([]any, len(col))

		group, ctx := errgroup.WithContext(rc)
		group.SetLimit(max(s.MaxThreads, 1))
		for i, v := range col {
			i, v := i, v
			group.Go(func() error {
				url := substituteTemplate(s.URLTemplate, stringify(v))
				req, err := buildRequest(s.Method, url, s.Headers)
				if err != nil {
					return err
				}
				req = req.WithContext(ctx)
				resp, err := client.Do(req)
				if err != nil {
					return err
				}
				payload, err := decodeJSONBody(resp)
				if err != nil {
					return err
				}
				results[i] = payload
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("httpsrc: %s: %w", s.Name, err))
		}

		f := frame.New(
			frame.Schema{{Name: s.ResponseColumn, DType: frame.Struct}},
			map[string][]any{s.ResponseColumn: results},
			len(results),
		)
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "http_batch", "cell", s.Output, "rows", len(results))
		return nil
	}
}
