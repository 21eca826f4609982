package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// notificationConn is the part of *pgx.Conn the listener uses.
type notificationConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// PGListener turns Postgres NOTIFY messages on one channel into Events.
// It holds a dedicated connection outside the database/sql pool.
type PGListener struct {
	dsn     string
	channel string
	log     *zap.Logger
	connect func(ctx context.Context, dsn string) (notificationConn, error)
}

// NewPGListener creates a listener for channel using its own connection to dsn.
func NewPGListener(dsn, channel string, log *zap.Logger) *PGListener {
	return &PGListener{
		dsn:     dsn,
		channel: channel,
		log:     log.Named("feed"),
		connect: dialPgx,
	}
}

var _ ChangeFeed = (*PGListener)(nil)

// Watch listens until ctx ends. Connection failures are reported as error
// events and retried with capped exponential backoff. Every successful LISTEN,
// the first included, is followed by a resync event: writes committed before
// the channel was listened on produce no notification.
func (l *PGListener) Watch(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)
	go func() {
		defer close(out)
		backoff := minBackoff
		for ctx.Err() == nil {
			conn, err := l.listen(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.log.Warn("feed_connect_failed", zap.String("channel", l.channel), zap.Error(err), zap.Duration("retry_in", backoff))
				send(ctx, out, Event{Err: err})
				if !sleep(ctx, backoff) {
					return
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			backoff = minBackoff
			send(ctx, out, Event{Op: OpResync})

			err = l.pump(ctx, conn, out)
			_ = conn.Close(context.Background())
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("feed_connection_lost", zap.String("channel", l.channel), zap.Error(err))
			send(ctx, out, Event{Err: err})
		}
	}()
	return out
}

func (l *PGListener) listen(ctx context.Context) (notificationConn, error) {
	conn, err := l.connect(ctx, l.dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}
	return conn, nil
}

func (l *PGListener) pump(ctx context.Context, conn notificationConn, out chan<- Event) error {
	for {
		op, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		send(ctx, out, Event{Op: op})
	}
}

func send(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
