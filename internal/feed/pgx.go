package feed

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxConn adapts *pgx.Conn, whose WaitForNotification returns the full notification.
type pgxConn struct {
	conn *pgx.Conn
}

func dialPgx(ctx context.Context, dsn string) (notificationConn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *pgxConn) WaitForNotification(ctx context.Context) (string, error) {
	n, err := c.conn.WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
