// Package entries provides the built-in entry set: the worker-side handlers
// and the matching client-side contracts.
//
// Handlers are deliberately deterministic: list_items fabricates a stable
// page of items from its inputs, so the same payload always produces the
// same result regardless of codec or worker instance.
package entries

import (
	"context"
	"fmt"

	"molt-accel/accelerr"
	"molt-accel/contract"
	"molt-accel/worker"
)

// Entry names served by the built-in set.
const (
	EntryListItems    = "list_items"
	EntryCompute      = "compute"
	EntryOffloadTable = "offload_table"
	EntryEcho         = "echo"
)

// RegisterAll registers the built-in entries on a worker server.
func RegisterAll(s *worker.Server) error {
	for name, fn := range map[string]worker.EntryFunc{
		EntryListItems:    ListItems,
		EntryCompute:      Compute,
		EntryOffloadTable: OffloadTable,
		EntryEcho:         Echo,
	} {
		if err := s.RegisterEntry(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// ListItemsContract declares the list_items input fields.
func ListItemsContract() *contract.Builder {
	return contract.NewBuilder(
		contract.Field{Name: "user_id", Kind: contract.Int, Required: true},
		contract.Field{Name: "q", Kind: contract.String},
		contract.Field{Name: "status", Kind: contract.String},
		contract.Field{Name: "cursor", Kind: contract.String},
		contract.Field{Name: "limit", Kind: contract.Int, Default: int64(50), HasRange: true, Min: 1, Max: 500},
	)
}

// ComputeContract declares the compute input fields.
func ComputeContract() *contract.Builder {
	return contract.NewBuilder(
		contract.Field{Name: "values", Kind: contract.FloatList, Required: true},
		contract.Field{Name: "scale", Kind: contract.Float, Default: float64(1)},
		contract.Field{Name: "offset", Kind: contract.Float, Default: float64(0)},
	)
}

// OffloadTableContract declares the offload_table input fields.
func OffloadTableContract() *contract.Builder {
	return contract.NewBuilder(
		contract.Field{Name: "rows", Kind: contract.Int, Required: true, HasRange: true, Min: 0, Max: 100000},
	)
}

// ContractFor returns the contract for a built-in entry name, or nil when
// the entry takes free-form input (echo).
func ContractFor(entry string) *contract.Builder {
	switch entry {
	case EntryListItems:
		return ListItemsContract()
	case EntryCompute:
		return ComputeContract()
	case EntryOffloadTable:
		return OffloadTableContract()
	default:
		return nil
	}
}

// ListItems fabricates one page of items for a user: half open, half closed,
// ids derived from the inputs, a next_cursor when the page is full.
func ListItems(_ context.Context, payload any) (any, error) {
	m, err := asMap(payload)
	if err != nil {
		return nil, err
	}
	userID, err := intField(m, "user_id", true, 0)
	if err != nil {
		return nil, err
	}
	limit, err := intField(m, "limit", false, 50)
	if err != nil {
		return nil, err
	}
	q := stringField(m, "q")
	status := stringField(m, "status")
	cursor := stringField(m, "cursor")

	base := abs64(userID)*1000 + int64(len(q)) + int64(len(status)) + int64(len(cursor))
	items := make([]map[string]any, 0, limit)
	var openCount, closedCount int64
	for idx := int64(0); idx < limit; idx++ {
		isOpen := idx%2 == 0
		statusValue := "closed"
		if isOpen {
			statusValue = "open"
			openCount++
		} else {
			closedCount++
		}
		itemID := base + idx
		items = append(items, map[string]any{
			"id":         itemID,
			"created_at": fmt.Sprintf("2026-01-%02dT00:00:%02dZ", (idx%28)+1, idx%60),
			"status":     statusValue,
			"title":      fmt.Sprintf("Item %d", itemID),
			"score":      float64(idx%100) / 100.0,
			"unread":     idx%3 == 0,
		})
	}

	var nextCursor any
	if len(items) > 0 {
		nextCursor = fmt.Sprintf("%d:%d", userID, limit)
	}
	return map[string]any{
		"items":       items,
		"next_cursor": nextCursor,
		"counts":      map[string]any{"open": openCount, "closed": closedCount},
	}, nil
}

// Compute applies value*scale+offset over a list of numbers and reports the
// count, sum, and scaled list.
func Compute(_ context.Context, payload any) (any, error) {
	m, err := asMap(payload)
	if err != nil {
		return nil, err
	}
	values, err := floatListField(m, "values")
	if err != nil {
		return nil, err
	}
	scale := floatFieldOr(m, "scale", 1)
	offset := floatFieldOr(m, "offset", 0)

	scaled := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		scaled[i] = v*scale + offset
		sum += scaled[i]
	}
	return map[string]any{
		"count":  len(scaled),
		"sum":    sum,
		"scaled": scaled,
	}, nil
}

// OffloadTable generates rows and returns the row count plus a 5-row sample.
func OffloadTable(_ context.Context, payload any) (any, error) {
	m, err := asMap(payload)
	if err != nil {
		return nil, err
	}
	rows, err := intField(m, "rows", true, 0)
	if err != nil {
		return nil, err
	}
	if rows < 0 {
		return nil, accelerr.New(accelerr.KindInvalidInput, "field \"rows\" must not be negative")
	}
	sample := make([]map[string]any, 0, 5)
	for i := int64(0); i < rows && i < 5; i++ {
		sample = append(sample, map[string]any{"id": i, "value": i % 7})
	}
	return map[string]any{"rows": rows, "sample": sample}, nil
}

// Echo returns the decoded payload unchanged.
func Echo(_ context.Context, payload any) (any, error) {
	return payload, nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
