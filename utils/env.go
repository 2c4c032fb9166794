package utils

import (
	"os"
	"strconv"
	"strings"
)

// EnvStr returns the first non-empty value among the given env keys.
// Deployments have historically used several names for the same knob.
func EnvStr(def string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return def
}

func EnvInt(def int, names ...string) int {
	v := EnvStr("", names...)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBool(def bool, names ...string) bool {
	v := strings.ToLower(EnvStr("", names...))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
