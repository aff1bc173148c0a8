package storage

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const sshDialTimeout = 10 * time.Second

// sftpBackend uploads files over SFTP, connecting fresh for every Put.
type sftpBackend struct {
	cfg BackendConfig
}

func newSFTPBackend(cfg BackendConfig) *sftpBackend {
	return &sftpBackend{cfg: cfg}
}

func (b *sftpBackend) Put(ctx context.Context, relPath string, data []byte) (string, error) {
	addr := net.JoinHostPort(b.cfg.Host, fmt.Sprintf("%d", sftpPort(b.cfg.Port)))

	sshCfg := &ssh.ClientConfig{
		User:            b.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(b.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // device-declared hosts have no known-hosts entry to check against
		Timeout:         sshDialTimeout,
	}

	dialer := net.Dialer{Timeout: sshDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("%w: dial %s: %w", ErrWriteFailed, addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		return "", fmt.Errorf("%w: ssh handshake: %w", ErrWriteFailed, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("%w: sftp client: %w", ErrWriteFailed, err)
	}
	defer sc.Close()

	root := strings.Trim(b.cfg.BasePath, "/")
	fullPath := path.Join(root, relPath)

	if err := sc.MkdirAll(path.Dir(fullPath)); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", ErrWriteFailed, err)
	}

	f, err := sc.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return "", fmt.Errorf("%w: open: %w", ErrWriteFailed, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: write: %w", ErrWriteFailed, err)
	}

	return relPath, nil
}

func sftpPort(p int) int {
	if p <= 0 {
		return 22
	}
	return p
}
