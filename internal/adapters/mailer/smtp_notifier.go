package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/hr-notifier/internal/core"
	"go.uber.org/zap"
)

// Security modes for the SMTP connection
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host               string
	Port               int
	Security           string
	Username           string
	Password           string
	HeloName           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// SMTPNotifier delivers notifications through an SMTP submission server
type SMTPNotifier struct {
	cfg      SMTPConfig
	composer *Composer
	logger   *zap.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(cfg SMTPConfig, composer *Composer, logger *zap.Logger) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	if cfg.Security == "" {
		cfg.Security = SecurityTLS
	}
	return &SMTPNotifier{
		cfg:      cfg,
		composer: composer,
		logger:   logger,
	}
}

// SendReminder implements core.Notifier
func (n *SMTPNotifier) SendReminder(ctx context.Context, batch *core.EmailBatch) error {
	msg, err := n.composer.Reminder(batch)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}
	return n.Send(ctx, msg)
}

// SendSeparationNotice implements core.Notifier
func (n *SMTPNotifier) SendSeparationNotice(ctx context.Context, notice *core.SeparationNotice) error {
	msg, err := n.composer.Separation(notice)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}
	return n.Send(ctx, msg)
}

// Send transmits one message. Every recipient must be accepted or nothing is sent.
func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	if err := n.send(ctx, msg); err != nil {
		n.logger.Error("Failed to send email",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return fmt.Errorf("%w: %v", core.ErrDispatch, err)
	}

	n.logger.Info("Email sent",
		zap.Strings("to", msg.To),
		zap.Strings("cc", msg.CC),
		zap.String("subject", msg.Subject),
		zap.String("message_id", msg.MessageID))
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	sender, err := envelopeAddress(msg.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	c, err := n.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	for _, rcpt := range msg.Recipients() {
		addr, err := envelopeAddress(rcpt)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", rcpt, err)
		}
		if err := c.Rcpt(addr, nil); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", addr, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message has been accepted at this point
	if err := c.Quit(); err != nil {
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// dial connects, negotiates TLS per the security mode and authenticates
func (n *SMTPNotifier) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	dialer := &net.Dialer{Timeout: n.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	deadline := time.Now().Add(n.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}

	tlsConfig := &tls.Config{
		ServerName:         n.cfg.Host,
		InsecureSkipVerify: n.cfg.InsecureSkipVerify,
	}

	var c *smtp.Client
	switch n.cfg.Security {
	case SecurityTLS:
		c = smtp.NewClient(tls.Client(conn, tlsConfig))
	case SecurityStartTLS, SecurityNone:
		c = smtp.NewClient(conn)
	default:
		conn.Close()
		return nil, fmt.Errorf("unsupported SMTP security mode: %s", n.cfg.Security)
	}

	if err := c.Hello(n.cfg.HeloName); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}

	if n.cfg.Security == SecurityStartTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			c.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if n.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)); err != nil {
			c.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}

	return c, nil
}

func envelopeAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
