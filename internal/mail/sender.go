package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// DefaultSMTPTimeout bounds one delivery attempt.
const DefaultSMTPTimeout = 30 * time.Second

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Addr       string // host:port
	Username   string // PLAIN auth when set
	Password   string
	RequireTLS bool // fail unless the relay offers STARTTLS
	Timeout    time.Duration
}

// SMTPSender delivers through an SMTP relay.
// Every network step of an attempt is bounded by the context and Timeout,
// whichever ends first.
type SMTPSender struct {
	host    string
	port    int
	cfg     SMTPConfig
	timeout time.Duration
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse smtp addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("parse smtp addr: invalid port %q", portStr)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	return &SMTPSender{host: host, port: port, cfg: cfg, timeout: timeout}, nil
}

// Send dials the relay, delivers msg and quits.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m, err := buildMsg(msg, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := gomail.NewClient(s.host, s.clientOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		if cause := contextCause(ctx); cause != nil {
			return fmt.Errorf("smtp send: %w: %w", cause, err)
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions(ctx context.Context) []gomail.Option {
	policy := gomail.TLSOpportunistic
	if s.cfg.RequireTLS {
		policy = gomail.TLSMandatory
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTimeout(s.timeout),
		gomail.WithTLSPolicy(policy),
		gomail.WithDialContextFunc(func(dialCtx context.Context, network, addr string) (net.Conn, error) {
			return dialWithDeadline(dialCtx, ctx, network, addr)
		}),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// dialWithDeadline connects and pins the connection to ctx: the deadline
// applies to the greeting read, and cancelling ctx unblocks any pending
// read or write. dialCtx only bounds the dial itself.
func dialWithDeadline(dialCtx, ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, network, addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return conn, nil
}

// contextCause reports why ctx ended, including a deadline that has passed
// before the timer fired.
func contextCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

// buildMsg renders msg as a plain-text UTF-8 message. Header values are
// encoded by go-mail, so CR and LF in a subject cannot start a new header.
func buildMsg(msg *Message, date time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(date)
	if msg.ID != "" {
		m.SetMessageIDWithValue(msg.ID + "@shelfkit")
	}
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender writes messages to the log instead of sending them.
// Used in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "mail.log_sender")}
}

// Send logs msg and always succeeds.
func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("mail_sent",
		"message_id", msg.ID,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
