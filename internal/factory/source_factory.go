package factory

import (
	"fmt"

	"github.com/mikey/hr-notifier/internal/adapters/lark"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// SourceFactory creates the Lark record source based on configuration
type SourceFactory struct {
	cfg     *config.Config
	mappers *MapperFactory
	clock   core.Clock
	logger  *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, mappers *MapperFactory, clock core.Clock, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:     cfg,
		mappers: mappers,
		clock:   clock,
		logger:  logger,
	}
}

// CreateSource creates a sheet or bitable source
func (f *SourceFactory) CreateSource() (core.RecordSource, error) {
	larkCfg, err := f.cfg.GetLark()
	if err != nil {
		return nil, err
	}
	mapper, err := f.mappers.CreateMapper()
	if err != nil {
		return nil, err
	}

	client := lark.NewClient(lark.ClientConfig{
		BaseURL:           larkCfg.BaseURL,
		AppID:             larkCfg.AppID,
		AppSecret:         larkCfg.AppSecret,
		Timeout:           larkCfg.Timeout,
		RequestsPerSecond: larkCfg.RequestsPerSecond,
	}, f.clock, f.logger)

	switch larkCfg.Source {
	case "sheet":
		return lark.NewSheetSource(client, mapper, larkCfg.SpreadsheetToken, larkCfg.SheetRange, f.logger), nil
	case "table":
		return lark.NewTableSource(client, mapper, larkCfg.AppToken, larkCfg.TableID, larkCfg.PageSize, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported record source: %s", larkCfg.Source)
	}
}
