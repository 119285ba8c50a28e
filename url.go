package captionkit

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// ErrInvalidEndpoint is returned when an endpoint cannot be resolved against
// the base URL.
var ErrInvalidEndpoint = errors.New("captionkit: invalid endpoint")

// BuildURL resolves endpoint against base the way a browser resolves a
// relative reference, then appends params in order. Existing query
// parameters in endpoint are kept in front of params.
func BuildURL(base *url.URL, endpoint string, params Params) (string, error) {
	if base == nil {
		return "", fmt.Errorf("%w: no base URL", ErrInvalidEndpoint)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidEndpoint, endpoint, err)
	}

	u := base.ResolveReference(ref)
	if q := encodeParams(params); q != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + q
		} else {
			u.RawQuery = q
		}
	}
	return u.String(), nil
}

// BuildURL resolves endpoint against the client's base URL.
func (c *Client) BuildURL(endpoint string, params Params) (string, error) {
	return BuildURL(c.baseURL, endpoint, params)
}

// encodeParams serialises params as a form-encoded query string, keeping
// their order. It is shared by URL building and cache key derivation so the
// two can never disagree.
func encodeParams(params Params) string {
	var b strings.Builder
	for _, p := range params {
		if isNilValue(p.Value) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(formatParamValue(p.Value)))
	}
	return b.String()
}

func isNilValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func formatParamValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case []string:
		return strings.Join(val, ",")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return formatParamValue(rv.Elem().Interface())
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatParamValue(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
