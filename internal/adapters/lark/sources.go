package lark

import (
	"context"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// SheetSource reads employee records from a spreadsheet range whose first row is the header
type SheetSource struct {
	client           *Client
	mapper           *Mapper
	spreadsheetToken string
	rng              string
	logger           *zap.Logger
}

// NewSheetSource creates a new spreadsheet record source
func NewSheetSource(client *Client, mapper *Mapper, spreadsheetToken, rng string, logger *zap.Logger) *SheetSource {
	return &SheetSource{
		client:           client,
		mapper:           mapper,
		spreadsheetToken: spreadsheetToken,
		rng:              rng,
		logger:           logger,
	}
}

// FetchAll implements core.RecordSource
func (s *SheetSource) FetchAll(ctx context.Context) ([]core.EmployeeRecord, error) {
	values, err := s.client.ReadRange(ctx, s.spreadsheetToken, s.rng)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	header := make([]string, len(values[0]))
	recognized := 0
	for i, cell := range values[0] {
		header[i] = s.mapper.textValue(cell)
		if _, ok := s.mapper.Canonical(header[i]); ok {
			recognized++
		}
	}
	if recognized == 0 {
		s.logger.Warn("Sheet header has no recognized fields", zap.Strings("header", header))
	}

	records := make([]core.EmployeeRecord, 0, len(values)-1)
	skipped := 0
	for _, row := range values[1:] {
		raw := make(RawRow, len(header))
		for i, cell := range row {
			if i < len(header) && header[i] != "" {
				raw[header[i]] = cell
			}
		}
		rec, ok := s.mapper.Map(raw)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	s.logger.Debug("Fetched sheet records",
		zap.Int("records", len(records)),
		zap.Int("rows_without_name", skipped))
	return records, nil
}

// TableSource reads employee records from a bitable table
type TableSource struct {
	client   *Client
	mapper   *Mapper
	appToken string
	tableID  string
	pageSize int
	logger   *zap.Logger
}

// NewTableSource creates a new bitable record source
func NewTableSource(client *Client, mapper *Mapper, appToken, tableID string, pageSize int, logger *zap.Logger) *TableSource {
	return &TableSource{
		client:   client,
		mapper:   mapper,
		appToken: appToken,
		tableID:  tableID,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchAll implements core.RecordSource
func (s *TableSource) FetchAll(ctx context.Context) ([]core.EmployeeRecord, error) {
	items, err := s.client.ListRecords(ctx, s.appToken, s.tableID, s.pageSize)
	if err != nil {
		return nil, err
	}

	records := make([]core.EmployeeRecord, 0, len(items))
	for _, item := range items {
		rec, ok := s.mapper.Map(RawRow(item.Fields))
		if !ok {
			s.logger.Debug("Skipping bitable record without employee name", zap.String("record_id", item.RecordID))
			continue
		}
		records = append(records, rec)
	}

	s.logger.Debug("Fetched bitable records", zap.Int("records", len(records)))
	return records, nil
}
