package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetService wraps the spreadsheet shared by the grading staff.
type SheetService struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsService builds an authenticated client from the OAuth client
// secret and the cached token named in the config.
func NewSheetsService(ctx context.Context, cfg Config) (*SheetService, error) {
	if cfg.SpreadsheetID == "" {
		return nil, invalidRequestf("spreadsheet_id is not configured")
	}

	creds, err := os.ReadFile(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading google credentials: %w", err)
	}
	authCfg, err := google.ConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	tokData, err := os.ReadFile(cfg.GoogleTokenPath)
	if err != nil {
		return nil, fmt.Errorf("reading google token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(tokData, tok); err != nil {
		return nil, fmt.Errorf("parsing google token: %w", err)
	}

	client := authCfg.Client(ctx, tok)
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, externalErr("sheets", "create service", err)
	}
	return &SheetService{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// EnsureWorksheet creates the named worksheet when the spreadsheet does not
// already have one.
func (s *SheetService) EnsureWorksheet(ctx context.Context, title string) error {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return externalErr("sheets", "get spreadsheet", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return externalErr("sheets", "add worksheet", err)
	}
	return nil
}

// ReadWorksheet returns the worksheet's cells as strings, one slice per row.
// Trailing empty cells are absent, matching what the API sends.
func (s *SheetService) ReadWorksheet(ctx context.Context, title string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, title).Context(ctx).Do()
	if err != nil {
		return nil, externalErr("sheets", "read worksheet", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteWorksheet replaces the worksheet's contents with rows.
func (s *SheetService) WriteWorksheet(ctx context.Context, title string, rows [][]string) error {
	clearReq := &sheets.ClearValuesRequest{}
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, title, clearReq).Context(ctx).Do(); err != nil {
		return externalErr("sheets", "clear worksheet", err)
	}

	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		cells := make([]any, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cell)
		}
		values = append(values, cells)
	}
	vr := &sheets.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, title, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return externalErr("sheets", "write worksheet", err)
	}
	return nil
}
