package utils

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// QueryInt reads the leading integer of a query value, so "3abc" is 3.
// It returns fallback when no digits lead the value. Values beyond the int
// range saturate.
func QueryInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)

	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return fallback
	}

	n, err := strconv.Atoi(raw[:end])
	if errors.Is(err, strconv.ErrRange) {
		if raw[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return fallback
	}
	return n
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
