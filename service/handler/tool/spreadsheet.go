package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/chatflow/chatflow/model/template"
	"github.com/chatflow/chatflow/service/handler"
)

// spreadsheet resolves the node's row payload against the variable bag and
// appends it to the configured sheet. A node missing any of its five
// required fields is skipped without error and without continuation;
// continuation fires only on a successful append.
func (h *Handler) spreadsheet(ctx context.Context, exec *handler.Exec) ([]*handler.FollowUp, error) {
	data := exec.Node.Data
	if data.AuthURL == "" || data.AuthLabel == "" || data.JSONData == nil || data.SheetName == "" || data.SheetID == "" {
		return nil, nil
	}

	resolved := template.ResolveValue(data.JSONData, exec.Variables)
	rows := rowsFrom(resolved)
	if len(rows) == 0 {
		return nil, nil
	}

	client := h.deps.Sheets(data.AuthURL, data.AuthLabel)
	if err := client.EnsureSheet(ctx, data.SheetID, data.SheetName); err != nil {
		return nil, fmt.Errorf("failed to ensure sheet %s: %w", data.SheetName, err)
	}
	if err := client.AppendRows(ctx, data.SheetID, data.SheetName, rows); err != nil {
		return nil, fmt.Errorf("failed to append rows to sheet %s: %w", data.SheetName, err)
	}
	return plainContinuation(exec), nil
}

// rowsFrom normalizes the resolved payload into sheet rows. Arrays of arrays
// map one to one; an array of objects becomes one row per object with cells
// in sorted key order; a single object or scalar becomes one row.
func rowsFrom(resolved interface{}) [][]interface{} {
	switch actual := resolved.(type) {
	case []interface{}:
		var rows [][]interface{}
		for _, item := range actual {
			if row := rowFrom(item); row != nil {
				rows = append(rows, row)
			}
		}
		return rows
	default:
		if row := rowFrom(resolved); row != nil {
			return [][]interface{}{row}
		}
	}
	return nil
}

func rowFrom(item interface{}) []interface{} {
	switch actual := item.(type) {
	case nil:
		return nil
	case []interface{}:
		return actual
	case map[string]interface{}:
		keys := make([]string, 0, len(actual))
		for k := range actual {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		row := make([]interface{}, 0, len(keys))
		for _, k := range keys {
			row = append(row, actual[k])
		}
		return row
	default:
		return []interface{}{actual}
	}
}
