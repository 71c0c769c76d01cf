package backend

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Shape is the wrapping the backend used around a list payload.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeArray
	ShapeItems
	ShapeValue
	ShapeValueItems
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeItems:
		return "items"
	case ShapeValue:
		return "value"
	case ShapeValueItems:
		return "value.items"
	default:
		return "unknown"
	}
}

// Page is the canonical list shape every envelope is normalized to.
type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalCount  int   `json:"totalCount"`
	PageNumber  int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
	Shape       Shape `json:"-"`
}

// PageRequest supplies defaults for pagination fields missing from a response.
type PageRequest struct {
	Number int
	Size   int
}

// Pagination field names, in lookup order. The backend has returned both sets.
var (
	totalCountFields  = []string{"totalRecords", "totalCount"}
	pageNumberFields  = []string{"pageNumber", "currentPage"}
	pageSizeFields    = []string{"pageSize"}
	totalPagesFields  = []string{"totalPages"}
	hasNextFields     = []string{"hasNextPage", "hasNext"}
	hasPreviousFields = []string{"hasPreviousPage", "hasPrevious"}
)

// DecodePage normalizes a list response. An unrecognised shape yields an
// empty page together with an error describing it; callers may log the error
// and carry on with the empty page.
func DecodePage[T any](raw []byte, req PageRequest) (Page[T], error) {
	page := Page[T]{Items: []T{}, PageNumber: req.Number, PageSize: req.Size, TotalPages: 1}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return page, errors.New("empty response body")
	}

	if raw[0] == '[' {
		items, err := decodeItems[T](raw)
		if err != nil {
			return page, err
		}
		page.Items = items
		page.Shape = ShapeArray
		page.TotalCount = len(items)
		return page, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return page, errors.Wrap(err, "decode envelope")
	}

	if value, ok := top["value"]; ok {
		value = bytes.TrimSpace(value)
		if len(value) > 0 && value[0] == '[' {
			items, err := decodeItems[T](value)
			if err != nil {
				return page, err
			}
			page.Items = items
			page.Shape = ShapeValue
			page.TotalCount = len(items)
			return page, nil
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(value, &inner); err == nil {
			if items, ok := inner["items"]; ok {
				return fillPage(page, inner, items, ShapeValueItems)
			}
		}
		return page, errors.New("value envelope without items")
	}

	if items, ok := top["items"]; ok {
		return fillPage(page, top, items, ShapeItems)
	}
	return page, errors.New("unrecognised list envelope")
}

func fillPage[T any](page Page[T], obj map[string]json.RawMessage, rawItems json.RawMessage, shape Shape) (Page[T], error) {
	items, err := decodeItems[T](rawItems)
	if err != nil {
		return page, err
	}
	page.Items = items
	page.Shape = shape
	page.TotalCount = len(items)
	if n, ok := intField(obj, totalCountFields); ok {
		page.TotalCount = n
	}
	if n, ok := intField(obj, pageNumberFields); ok && n > 0 {
		page.PageNumber = n
	}
	if n, ok := intField(obj, pageSizeFields); ok && n > 0 {
		page.PageSize = n
	}
	if n, ok := intField(obj, totalPagesFields); ok && n > 0 {
		page.TotalPages = n
	}
	if b, ok := boolField(obj, hasNextFields); ok {
		page.HasNext = b
	}
	if b, ok := boolField(obj, hasPreviousFields); ok {
		page.HasPrevious = b
	}
	return page, nil
}

func decodeItems[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []T{}, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []T{}, errors.Wrap(err, "decode items")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func intField(obj map[string]json.RawMessage, names []string) (int, bool) {
	for _, name := range names {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return int(f), true
	}
	return 0, false
}

func boolField(obj map[string]json.RawMessage, names []string) (bool, bool) {
	for _, name := range names {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			continue
		}
		return b, true
	}
	return false, false
}
