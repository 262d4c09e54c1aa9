package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// LogNotifier prints composed emails instead of sending them.
// It backs the log transport used for local runs.
type LogNotifier struct {
	composer *Composer
	out      io.Writer
	verbose  bool
	logger   *zap.Logger
}

// NewLogNotifier creates a new log notifier writing to out
func NewLogNotifier(composer *Composer, out io.Writer, verbose bool, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		composer: composer,
		out:      out,
		verbose:  verbose,
		logger:   logger,
	}
}

// SendReminder implements core.Notifier
func (n *LogNotifier) SendReminder(ctx context.Context, batch *core.EmailBatch) error {
	msg, err := n.composer.Reminder(batch)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}
	return n.print(msg)
}

// SendSeparationNotice implements core.Notifier
func (n *LogNotifier) SendSeparationNotice(ctx context.Context, notice *core.SeparationNotice) error {
	msg, err := n.composer.Separation(notice)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}
	return n.print(msg)
}

func (n *LogNotifier) print(msg *Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Email ===\n")
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if n.verbose {
		fmt.Fprintf(&b, "\n%s\n", msg.Body)
	}

	if _, err := io.WriteString(n.out, b.String()); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}

	n.logger.Debug("Email written to log transport",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
