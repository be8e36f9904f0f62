package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"
)

// Config holds SMTP connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// UseTLS dials implicit TLS. Port 465 always does.
	UseTLS      bool
	DialTimeout time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) implicitTLS() bool {
	return c.UseTLS || c.Port == 465
}

// Pool keeps up to size idle SMTP connections. Connections are opened on
// demand so a missing mail server does not block startup.
type Pool struct {
	connections chan *smtp.Client
	config      Config
	size        int
	mu          sync.Mutex
	closed      bool
}

// NewPool creates a connection pool holding at most size idle clients
func NewPool(config Config, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &Pool{
		connections: make(chan *smtp.Client, size),
		config:      config,
		size:        size,
	}
}

// createConnection opens and authenticates a new SMTP client
func (p *Pool) createConnection(ctx context.Context) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: p.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.config.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP: %w", err)
	}

	if p.config.implicitTLS() {
		conn = tls.Client(conn, &tls.Config{
			ServerName: p.config.Host,
			MinVersion: tls.VersionTLS12,
		})
	}

	client, err := smtp.NewClient(conn, p.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if !p.config.implicitTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.config.Host, MinVersion: tls.VersionTLS12}); err != nil {
				client.Close()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	// Authenticate if credentials are provided
	if p.config.Username != "" && p.config.Password != "" {
		auth := smtp.PlainAuth("", p.config.Username, p.config.Password, p.config.Host)
		if err := client.Auth(auth); err != nil {
			client.Quit()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	return client, nil
}

// Get retrieves a live connection, opening one when none is idle
func (p *Pool) Get(ctx context.Context) (*smtp.Client, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("connection pool is closed")
	}
	p.mu.Unlock()

	select {
	case client, ok := <-p.connections:
		if !ok {
			return nil, fmt.Errorf("connection pool is closed")
		}
		// Test connection with NOOP
		if err := client.Noop(); err != nil {
			client.Close()
			return p.createConnection(ctx)
		}
		return client, nil
	default:
		return p.createConnection(ctx)
	}
}

// Put returns a connection to the pool
func (p *Pool) Put(client *smtp.Client) {
	if client == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		client.Quit()
		return
	}

	select {
	case p.connections <- client:
	default:
		// Pool full, close connection
		client.Quit()
	}
}

// Discard closes a connection that hit an error mid-transaction
func (p *Pool) Discard(client *smtp.Client) {
	if client != nil {
		client.Close()
	}
}

// Send delivers one message through a pooled connection
func (p *Pool) Send(ctx context.Context, from string, to []string, msg []byte) error {
	client, err := p.Get(ctx)
	if err != nil {
		return err
	}

	if err := transmit(client, from, to, msg); err != nil {
		p.Discard(client)
		return err
	}
	if err := client.Reset(); err != nil {
		p.Discard(client)
		return nil
	}
	p.Put(client)
	return nil
}

func transmit(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

// Ping checks that the server accepts a connection
func (p *Pool) Ping(ctx context.Context) error {
	client, err := p.Get(ctx)
	if err != nil {
		return err
	}
	p.Put(client)
	return nil
}

// Close closes all idle connections in the pool
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.connections)
	p.mu.Unlock()

	for client := range p.connections {
		if client != nil {
			client.Quit()
		}
	}
}

// Size returns the maximum number of idle connections
func (p *Pool) Size() int {
	return p.size
}
