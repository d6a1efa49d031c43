// Package sheets appends flow-captured rows to a spreadsheet. The Client
// talks to the Sheets v4 REST API with a bearer token loaded through
// viant/scy; tests use the Memory implementation.
package sheets

import "context"

// Service is what the spreadsheet node needs: make sure the tab exists, then
// append rows to it.
type Service interface {
	EnsureSheet(ctx context.Context, spreadsheetID, sheetName string) error
	AppendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]interface{}) error
}
