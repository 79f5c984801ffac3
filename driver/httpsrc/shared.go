// SPDX-License-Identifier: GPL-3.0-or-later

package httpsrc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

const defaultTimeout = 30 * time.Second

// substituteTemplate replaces the first "{}" placeholder in template with
// value, matching the same placeholder convention transform/expr's format
// expression uses for string templates.
func substituteTemplate(template, value string) string {
	return strings.Replace(template, "{}", value, 1)
}

func readInputFrame(rc registry.Context, cellName string) (frame.Frame, error) {
	cell := rc.Universe().MustCell(cellName)
	held, _, err := cell.Read(rc)
	if err != nil {
		return frame.Frame{}, err
	}
	f, _ := held.(frame.Frame)
	return f, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func buildRequest(method, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func decodeJSONBody(resp *http.Response) (any, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding json response: %w", err)
	}
	return payload, nil
}

func stringOption(options map[string]any, key, def string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return def
}

func headerOption(options map[string]any, key string) map[string]string {
	raw, ok := options[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringify(v)
	}
	return out
}

func intOption(options map[string]any, key string, def int) int {
	switch v := options[key].(type) {
	case int:
		return v
	default:
		return def
	}
}
