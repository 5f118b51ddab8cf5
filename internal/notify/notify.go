// Package notify announces newly published release candidates over NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
)

// CandidatePublished is the message body sent when the candidate link moves.
type CandidatePublished struct {
	RunID       string    `json:"run_id"`
	Version     string    `json:"version"`
	ReleaseDir  string    `json:"release_dir"`
	Candidate   string    `json:"candidate"`
	Artifacts   []string  `json:"artifacts"`
	Manifest    string    `json:"manifest"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier delivers candidate notifications.
type Notifier interface {
	CandidatePublished(ctx context.Context, msg CandidatePublished) error
	Close()
}

// Noop discards notifications.
type Noop struct{}

func (Noop) CandidatePublished(context.Context, CandidatePublished) error { return nil }
func (Noop) Close()                                                        {}

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes notifications on a NATS subject.
type NATSNotifier struct {
	conn    conn
	subject string
	timeout time.Duration
}

// New returns a NATS notifier for cfg, or Noop when no server is configured.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("kitbuilder"),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, kerrors.NotifyError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.NATSURL).
			Build()
	}
	slog.Debug("NATS notifier connected", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return newNATSNotifier(nc, cfg.Subject, cfg.Timeout), nil
}

func newNATSNotifier(c conn, subject string, timeout time.Duration) *NATSNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSNotifier{conn: c, subject: subject, timeout: timeout}
}

// CandidatePublished publishes msg and waits for the server to acknowledge it.
func (n *NATSNotifier) CandidatePublished(ctx context.Context, msg CandidatePublished) error {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return kerrors.NotifyError("failed to encode notification").WithCause(err).Build()
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return kerrors.NotifyError("failed to publish notification").
			WithCause(err).
			WithContext("subject", n.subject).
			Build()
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return kerrors.NotifyError("notification not acknowledged").
			WithCause(err).
			WithContext("subject", n.subject).
			Build()
	}
	slog.Info("Published candidate notification", slog.String("subject", n.subject), logfields.Version(msg.Version))
	return nil
}

// Close closes the connection.
func (n *NATSNotifier) Close() { n.conn.Close() }
