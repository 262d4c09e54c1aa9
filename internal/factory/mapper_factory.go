package factory

import (
	"github.com/mikey/hr-notifier/internal/adapters/lark"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/utils"
	"go.uber.org/zap"
)

// MapperFactory creates the row mappers that turn source rows into employee records
type MapperFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMapperFactory creates a new MapperFactory
func NewMapperFactory(cfg *config.Config, logger *zap.Logger) *MapperFactory {
	return &MapperFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates the normalizer shared by header, status and value decoding
func (f *MapperFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger.Named("text"))
}

// CreateMapper creates a mapper whose timestamps resolve to dates in the reminder timezone
func (f *MapperFactory) CreateMapper() (*lark.Mapper, error) {
	reminderCfg, err := f.cfg.GetReminder()
	if err != nil {
		return nil, err
	}
	return lark.NewMapper(f.CreateTextProcessor(), reminderCfg.Location), nil
}
