// SPDX-License-Identifier: GPL-3.0-or-later

package httpsrc

import (
	"fmt"
	"strings"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// SingleBuilder adapts [SingleSource] to [config.SourceBuilder] for the
// http_single kind (§4.4): one request built by substituting a joined
// column's values into a URL template, response parsed into a
// single-row, single-column Frame.
func SingleBuilder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	urlTemplate := stringOption(spec.Options, "url_template", "")
	if urlTemplate == "" {
		return nil, fmt.Errorf("httpsrc: source %q: missing required option %q", spec.Name, "url_template")
	}
	column := stringOption(spec.Options, "column", "")
	if column == "" {
		return nil, fmt.Errorf("httpsrc: source %q: missing required option %q", spec.Name, "column")
	}
	input, _ := args["input"].(string)
	output, _ := args["output"].(string)
	if input == "" || output == "" {
		return nil, fmt.Errorf("httpsrc: source %q: stage needs both input and output cells", spec.Name)
	}
	src := &SingleSource{
		Name:           spec.Name,
		URLTemplate:    urlTemplate,
		Column:         column,
		Separator:      stringOption(spec.Options, "separator", ","),
		Method:         stringOption(spec.Options, "method", "GET"),
		Headers:        headerOption(spec.Options, "headers"),
		ResponseColumn: stringOption(spec.Options, "response_column", "output"),
		Input:          input,
		Output:         output,
	}
	return src.Task(), nil
}

// SingleSource implements the http_single source kind (§4.4): one request
// per stage invocation, its URL built by joining every value of Column
// from the current Input Frame with Separator and substituting the result
// into URLTemplate's single "{}" placeholder.
type SingleSource struct {
	Name           string
	URLTemplate    string
	Column         string
	Separator      string
	Method         string
	Headers        map[string]string
	ResponseColumn string
	Input          string
	Output         string
}

// Task adapts SingleSource to the [registry.Task] dispatch signature.
func (s *SingleSource) Task() registry.Task {
	return func(rc registry.Context) error {
		in, err := readInputFrame(rc, s.Input)
		if err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		col, ok := in.Column(s.Column)
		if !ok {
			return capperr.New(capperr.SourceFail, rc.StageLabel(),
				fmt.Errorf("httpsrc: %s: column %q not found on input", s.Name, s.Column))
		}
		values := make([]string, len(col))
		for i, v := range col {
			values[i] = stringify(v)
		}
		url := substituteTemplate(s.URLTemplate, strings.Join(values, s.Separator))

		client := newClient(rc.Logger(), defaultTimeout)
		req, err := buildRequest(s.Method, url, s.Headers)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("httpsrc: %s: %w", s.Name, err))
		}
		req = req.WithContext(rc)

		resp, err := client.Do(req)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("httpsrc: %s: %w", s.Name, err))
		}
		payload, err := decodeJSONBody(resp)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("httpsrc: %s: %w", s.Name, err))
		}

		f := frame.New(
			frame.Schema{{Name: s.ResponseColumn, DType: frame.Struct}},
			map[string][]any{s.ResponseColumn: {payload}},
			1,
		)
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "http_single", "cell", s.Output, "rows", 1)
		return nil
	}
}
