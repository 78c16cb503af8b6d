package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Size clamps PageSize to 1..MaxPageSize, using DefaultPageSize when unset.
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil || cursor.ID == "" {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// Slice pages through an ordered in-memory list. The cursor names the last key served.
// A cursor whose key is no longer listed yields ErrInvalidPageToken.
func Slice[T any](items []T, p Pagination, key func(T) string) ([]T, PageInfo, error) {
	start := 0
	if p.PageToken != "" {
		cursor, err := DecodeCursor(p.PageToken)
		if err != nil {
			return nil, PageInfo{}, err
		}
		start = -1
		for i, item := range items {
			if key(item) == cursor.ID {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, PageInfo{}, ErrInvalidPageToken
		}
	}

	size := p.Size()
	end := start + size
	if end >= len(items) {
		return items[start:], PageInfo{HasMore: false}, nil
	}

	page := items[start:end]
	token, err := EncodeCursor(Cursor{ID: key(page[len(page)-1])})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return page, PageInfo{NextPageToken: token, HasMore: true}, nil
}
