// Package transfer moves backup artifacts between the local host and the
// remote FTP storage. All paths handed to the client are forward-slash
// remote paths; directory layout policy lives with the callers.
package transfer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/config"
)

// ConnectError wraps a failure to reach the remote endpoint.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError wraps a login rejection.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string { return fmt.Sprintf("login as %s: %v", e.User, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// TransferError wraps a failed upload or download of a specific path.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }
func (e *TransferError) Unwrap() error { return e.Err }

// Conn is an authenticated session against the remote storage. Not safe for
// concurrent use; each worker dials its own connection.
type Conn struct {
	conn   *ftp.ServerConn
	logger zerolog.Logger
}

// ParseEndpoint normalizes the configured endpoint into a dialable host:port.
// Accepts a bare host, host:port, or a URL with an ftp or ftps scheme. The
// default port is 21.
func ParseEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse endpoint %q: %w", raw, err)
		}
		switch u.Scheme {
		case "ftp", "ftps":
		default:
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		host = u.Host
	}
	if host == "" {
		return "", fmt.Errorf("endpoint %q has no host", raw)
	}
	if !strings.Contains(host, ":") {
		host += ":21"
	}
	return host, nil
}

// Dial connects and authenticates against the configured endpoint.
func Dial(ctx context.Context, cfg config.TransferConfig, logger zerolog.Logger) (*Conn, error) {
	addr, err := ParseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(30 * time.Second),
	}
	if cfg.FTPS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: strings.Split(addr, ":")[0],
		}))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		conn.Quit()
		return nil, &AuthError{User: cfg.Username, Err: err}
	}

	logger.Debug().Str("addr", addr).Bool("ftps", cfg.FTPS).Msg("remote storage connected")
	return &Conn{conn: conn, logger: logger}, nil
}

// dirPrefixes expands a path into the chain of directories leading to it.
// A relative path stays relative to the login directory so that the created
// directories line up with where transfers will land.
func dirPrefixes(path string) []string {
	root := ""
	if strings.HasPrefix(path, "/") {
		root = "/"
	}
	var prefixes []string
	var parts []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, seg)
		prefixes = append(prefixes, root+strings.Join(parts, "/"))
	}
	return prefixes
}

// EnsureDir creates every missing component of path. Creation failures are
// collected as warnings rather than returned as errors: on a shared server
// the directories often already exist and MKD reports that as a failure.
// Callers surface the warnings only if a later transfer into the path fails.
func (c *Conn) EnsureDir(path string) []string {
	var warnings []string
	for _, dir := range dirPrefixes(path) {
		if err := c.conn.MakeDir(dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("Error creating folder %s", dir))
		}
	}
	return warnings
}

// Upload stores the contents of r at remotePath. On failure any partial file
// is deleted best effort.
func (c *Conn) Upload(remotePath string, r io.Reader) error {
	if err := c.conn.Stor(remotePath, r); err != nil {
		_ = c.conn.Delete(remotePath)
		return &TransferError{Op: "upload", Path: remotePath, Err: err}
	}
	return nil
}

// Download streams remotePath into w and returns the byte count.
func (c *Conn) Download(remotePath string, w io.Writer) (int64, error) {
	resp, err := c.conn.Retr(remotePath)
	if err != nil {
		return 0, &TransferError{Op: "download", Path: remotePath, Err: err}
	}
	defer resp.Close()

	n, err := io.Copy(w, resp)
	if err != nil {
		return n, &TransferError{Op: "download", Path: remotePath, Err: err}
	}
	return n, nil
}

// Size returns the size of a remote file in bytes.
func (c *Conn) Size(remotePath string) (int64, error) {
	n, err := c.conn.FileSize(remotePath)
	if err != nil {
		return 0, &TransferError{Op: "size", Path: remotePath, Err: err}
	}
	return n, nil
}

// Delete removes a remote file.
func (c *Conn) Delete(remotePath string) error {
	if err := c.conn.Delete(remotePath); err != nil {
		return &TransferError{Op: "delete", Path: remotePath, Err: err}
	}
	return nil
}

// Close ends the session. Safe on a nil receiver so workers can defer it
// unconditionally.
func (c *Conn) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Quit(); err != nil {
		c.logger.Debug().Err(err).Msg("ftp quit failed")
	}
}
