package factory

import (
	"fmt"
	"io"
	"net/mail"

	"github.com/mikey/hr-notifier/internal/adapters/mailer"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// NotifierFactory creates notifiers based on configuration
type NotifierFactory struct {
	cfg    *config.Config
	clock  core.Clock
	out    io.Writer
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory.
// out receives the emails of the log transport.
func NewNotifierFactory(cfg *config.Config, clock core.Clock, out io.Writer, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		clock:  clock,
		out:    out,
		logger: logger,
	}
}

// CreateNotifier creates a notifier based on the configuration
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	reminderCfg, err := f.cfg.GetReminder()
	if err != nil {
		return nil, err
	}

	from := smtpCfg.From
	if reminderCfg.SenderName != "" {
		if addr, err := mail.ParseAddress(smtpCfg.From); err == nil && addr.Name == "" {
			from = (&mail.Address{Name: reminderCfg.SenderName, Address: addr.Address}).String()
		}
	}

	composer, err := mailer.NewComposer(mailer.ComposerConfig{
		From:                   from,
		SenderName:             reminderCfg.SenderName,
		ProbationFormURL:       reminderCfg.ProbationFormURL,
		ContractRenewalFormURL: reminderCfg.ContractRenewalFormURL,
	}, f.clock)
	if err != nil {
		return nil, err
	}

	switch smtpCfg.Transport {
	case "smtp":
		return mailer.NewSMTPNotifier(mailer.SMTPConfig{
			Host:               smtpCfg.Host,
			Port:               smtpCfg.Port,
			Security:           smtpCfg.Security,
			Username:           smtpCfg.Username,
			Password:           smtpCfg.Password,
			HeloName:           smtpCfg.Helo,
			Timeout:            smtpCfg.Timeout,
			InsecureSkipVerify: smtpCfg.InsecureSkipVerify,
		}, composer, f.logger), nil
	case "log":
		return mailer.NewLogNotifier(composer, f.out, f.cfg.GetBool("cli.verbose"), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier transport: %s", smtpCfg.Transport)
	}
}
