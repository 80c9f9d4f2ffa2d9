package getsafe

import (
	"time"
)

func String(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Time accepts native times as well as RFC3339 strings.
func Time(payload map[string]any, key string) time.Time {
	v, ok := payload[key]
	if !ok {
		return time.Time{}
	}

	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	}

	return time.Time{}
}
