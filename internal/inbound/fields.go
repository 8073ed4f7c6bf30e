package inbound

import "strings"

// stringField returns the trimmed string at key; ok is false when the key is
// missing, not a string, or blank.
func stringField(p Payload, key string) (string, bool) {
	s, ok := p[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func firstString(p Payload, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := stringField(p, k); ok {
			return s, true
		}
	}
	return "", false
}

func objectField(p Payload, key string) (Payload, bool) {
	m, ok := p[key].(map[string]any)
	return m, ok
}

// firstObject returns the first element of an array of objects.
func firstObject(p Payload, key string) (Payload, bool) {
	arr, ok := p[key].([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	m, ok := arr[0].(map[string]any)
	return m, ok
}

// isString reports whether key holds a string, blank or not.
func isString(p Payload, key string) bool {
	_, ok := p[key].(string)
	return ok
}

func anyString(p Payload, keys ...string) bool {
	for _, k := range keys {
		if isString(p, k) {
			return true
		}
	}
	return false
}

// or resolves an optional value to a default.
func or(s string, ok bool, def string) string {
	if ok {
		return s
	}
	return def
}

// htmlField returns the stripped text of an HTML field.
func htmlField(p Payload, keys ...string) (string, bool) {
	raw, ok := firstString(p, keys...)
	if !ok {
		return "", false
	}
	text := HTMLToText(raw)
	return text, text != ""
}

// textOrHTML prefers a plain-text field and falls back to stripped HTML.
func textOrHTML(p Payload, textKeys, htmlKeys []string) string {
	if s, ok := firstString(p, textKeys...); ok {
		return s
	}
	return orEmpty(htmlField(p, htmlKeys...))
}

func orEmpty(s string, ok bool) string { return or(s, ok, "") }
