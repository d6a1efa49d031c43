package sheets

import (
	"context"
	"sync"
)

// Memory is an in-memory Service used by tests and examples.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]map[string][][]interface{}
}

var _ Service = (*Memory)(nil)

// NewMemory creates an empty in-memory sheet store.
func NewMemory() *Memory {
	return &Memory{sheets: map[string]map[string][][]interface{}{}}
}

// EnsureSheet creates the tab when absent.
func (m *Memory) EnsureSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs, ok := m.sheets[spreadsheetID]
	if !ok {
		tabs = map[string][][]interface{}{}
		m.sheets[spreadsheetID] = tabs
	}
	if _, ok := tabs[sheetName]; !ok {
		tabs[sheetName] = nil
	}
	return nil
}

// AppendRows appends to the tab, creating it when absent.
func (m *Memory) AppendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]interface{}) error {
	if err := m.EnsureSheet(ctx, spreadsheetID, sheetName); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[spreadsheetID][sheetName] = append(m.sheets[spreadsheetID][sheetName], rows...)
	return nil
}

// Rows returns the tab's rows.
func (m *Memory) Rows(spreadsheetID, sheetName string) [][]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sheets[spreadsheetID][sheetName]
}
