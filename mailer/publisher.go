package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DefaultQueue is the durable queue the mail worker consumes.
const DefaultQueue = "marketauth.mail"

// ErrClosed is returned by sends after Close.
var ErrClosed = errors.New("mailer: publisher closed")

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Session is one broker connection as seen by the publisher.
type Session struct {
	Channel Channel
	// Lost fires or closes when the underlying connection goes away. Optional.
	Lost <-chan *amqp.Error
	// Release closes the underlying connection. Optional.
	Release func() error
}

// Redialer opens a fresh [Session]. The publisher calls it after the
// current session is lost.
type Redialer func() (Session, error)

// PublisherConfig configures a [Publisher].
type PublisherConfig struct {
	Queue  string
	Links  Links
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Publisher publishes one persistent JSON message per link to a durable
// queue. It is safe for concurrent use. Publishers built with a [Redialer]
// replace a lost connection on the next send.
type Publisher struct {
	mu      sync.Mutex
	ch      Channel
	release func() error
	redial  Redialer
	cfg     PublisherConfig
	closed  bool
}

// Dial connects to the broker at url and declares the queue. The connection
// is watched and re-established on demand after it drops.
func Dial(url string, cfg PublisherConfig) (*Publisher, error) {
	return NewReconnectingPublisher(func() (Session, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return Session{}, fmt.Errorf("mailer: dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return Session{}, fmt.Errorf("mailer: open channel: %w", err)
		}
		return Session{
			Channel: ch,
			Lost:    conn.NotifyClose(make(chan *amqp.Error, 1)),
			Release: conn.Close,
		}, nil
	}, cfg)
}

// NewPublisher declares the queue on ch and returns a publisher bound to it.
// It never reconnects.
func NewPublisher(ch Channel, cfg PublisherConfig) (*Publisher, error) {
	if ch == nil {
		return nil, errors.New("mailer: nil channel")
	}
	p := newPublisher(cfg)
	if err := p.declare(ch); err != nil {
		return nil, err
	}
	p.ch = ch
	return p, nil
}

// NewReconnectingPublisher opens its first session with redial and uses it
// again whenever the session is lost.
func NewReconnectingPublisher(redial Redialer, cfg PublisherConfig) (*Publisher, error) {
	if redial == nil {
		return nil, errors.New("mailer: nil redialer")
	}
	p := newPublisher(cfg)
	p.redial = redial

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(cfg PublisherConfig) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Publisher{cfg: cfg}
}

func (p *Publisher) declare(ch Channel) error {
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mailer: declare queue %s: %w", p.cfg.Queue, err)
	}
	return nil
}

func (p *Publisher) connectLocked() error {
	s, err := p.redial()
	if err != nil {
		return err
	}
	if s.Channel == nil {
		return errors.New("mailer: redial returned no channel")
	}
	if err := p.declare(s.Channel); err != nil {
		_ = s.Channel.Close()
		if s.Release != nil {
			_ = s.Release()
		}
		return err
	}
	p.ch, p.release = s.Channel, s.Release
	if s.Lost != nil {
		go p.watch(s.Channel, s.Lost)
	}
	return nil
}

// watch drops ch once its connection reports closure so the next send
// redials instead of publishing into a dead channel.
func (p *Publisher) watch(ch Channel, lost <-chan *amqp.Error) {
	reason, ok := <-lost

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.ch != ch {
		return
	}
	entry := p.cfg.Logger.WithField("queue", p.cfg.Queue)
	if ok && reason != nil {
		entry = entry.WithError(reason)
	}
	entry.Warn("mailer: broker connection lost")
	p.dropLocked()
}

func (p *Publisher) dropLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.release != nil {
		_ = p.release()
	}
	p.ch, p.release = nil, nil
}

func (p *Publisher) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch != nil
}

func (p *Publisher) SendVerificationLink(ctx context.Context, email, token string) error {
	return p.publish(ctx, KindVerification, email, token)
}

func (p *Publisher) SendPasswordResetLink(ctx context.Context, email, token string) error {
	return p.publish(ctx, KindPasswordReset, email, token)
}

func (p *Publisher) publish(ctx context.Context, kind Kind, email, token string) error {
	now := p.cfg.Now().UTC()
	body, err := json.Marshal(Message{
		Kind:     kind,
		Email:    email,
		Token:    token,
		Link:     p.cfg.Links.build(kind, token),
		IssuedAt: now,
	})
	if err != nil {
		return fmt.Errorf("mailer: marshal: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Type:         string(kind),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.ch == nil {
		if err := p.reconnectLocked(); err != nil {
			return fmt.Errorf("mailer: publish %s: %w", kind, err)
		}
	}

	err = p.ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) && p.redial != nil {
		p.dropLocked()
		if rerr := p.reconnectLocked(); rerr != nil {
			return fmt.Errorf("mailer: publish %s: %w", kind, rerr)
		}
		err = p.ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("mailer: publish %s: %w", kind, err)
	}
	return nil
}

func (p *Publisher) reconnectLocked() error {
	if p.redial == nil {
		return amqp.ErrClosed
	}
	if err := p.connectLocked(); err != nil {
		p.cfg.Logger.WithError(err).WithField("queue", p.cfg.Queue).Warn("mailer: reconnect failed")
		return err
	}
	p.cfg.Logger.WithField("queue", p.cfg.Queue).Info("mailer: reconnected to broker")
	return nil
}

// Close closes the channel and, for publishers built by Dial, the
// connection. It is idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.release != nil {
		if cerr := p.release(); err == nil {
			err = cerr
		}
	}
	p.ch, p.release = nil, nil
	return err
}
