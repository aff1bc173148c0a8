package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpDialTimeout = 10 * time.Second

// ftpBackend uploads files over FTP, connecting fresh for every Put.
type ftpBackend struct {
	cfg BackendConfig
}

func newFTPBackend(cfg BackendConfig) *ftpBackend {
	return &ftpBackend{cfg: cfg}
}

func (b *ftpBackend) Put(ctx context.Context, relPath string, data []byte) (string, error) {
	addr := fmt.Sprintf("%s:%d", b.cfg.Host, ftpPort(b.cfg.Port))

	opts := []ftp.DialOption{ftp.DialWithTimeout(ftpDialTimeout), ftp.DialWithContext(ctx)}
	if !b.cfg.Passive {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: dial %s: %w", ErrWriteFailed, addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(b.cfg.User, b.cfg.Password); err != nil {
		return "", fmt.Errorf("%w: login: %w", ErrWriteFailed, err)
	}

	root := strings.Trim(b.cfg.BasePath, "/")
	fullPath := path.Join(root, relPath)

	if err := ftpMkdirAll(conn, path.Dir(fullPath)); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", ErrWriteFailed, err)
	}
	if err := conn.Stor(fullPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: stor: %w", ErrWriteFailed, err)
	}

	return relPath, nil
}

// ftpMkdirAll creates every path segment under dir, tolerating
// already-exists errors so retried uploads stay idempotent.
func ftpMkdirAll(conn *ftp.ServerConn, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		if err := conn.MakeDir(cur); err != nil && !isFTPExistsErr(err) {
			return err
		}
	}
	return nil
}

func isFTPExistsErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "exist")
}

func ftpPort(p int) int {
	if p <= 0 {
		return 21
	}
	return p
}
