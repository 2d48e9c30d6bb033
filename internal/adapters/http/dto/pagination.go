package dto

import (
	"cmp"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
)

// Page size bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors this service did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// cursorPrefix versions the cursor encoding.
const cursorPrefix = "k1:"

// PageRequest holds the paging query parameters of a listing.
type PageRequest struct {
	// Cursor is the NextCursor of the previous page, empty for the first.
	Cursor string `form:"cursor"`

	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// PageSize returns Limit clamped to [1, MaxLimit], or DefaultLimit when unset.
func (p *PageRequest) PageSize() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// After returns the key the requested page starts after. It is empty for
// the first page.
func (p *PageRequest) After() (string, error) {
	return DecodeCursor(p.Cursor)
}

// Page is one page of a listing ordered by a string key.
type Page[T any] struct {
	Items []T `json:"items"`

	// NextCursor resumes the listing after the last item. Empty on the last page.
	NextCursor string `json:"nextCursor,omitempty"`

	HasMore bool `json:"hasMore"`
}

// PageAfter returns at most limit items whose key sorts after the given
// key. items must be sorted by key in ascending order and keys must be
// unique. An empty after starts at the first item.
func PageAfter[T any](items []T, after string, limit int, key func(T) string) *Page[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := 0

	if after != "" {
		var found bool

		start, found = slices.BinarySearchFunc(items, after, func(item T, k string) int {
			return cmp.Compare(key(item), k)
		})
		if found {
			start++
		}
	}

	end := min(start+limit, len(items))

	page := &Page[T]{Items: items[start:end], HasMore: end < len(items)}
	if page.Items == nil {
		page.Items = []T{}
	}

	if page.HasMore {
		page.NextCursor = EncodeCursor(key(items[end-1]))
	}

	return page
}

// EncodeCursor returns the opaque cursor for key.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + key))
}

// DecodeCursor returns the key encoded in cursor. An empty cursor decodes
// to an empty key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}

	key, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok || key == "" {
		return "", ErrInvalidCursor
	}

	return key, nil
}
