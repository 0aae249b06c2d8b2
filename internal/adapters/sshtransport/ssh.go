// Package sshtransport implements the remote transport port over SSH, with
// SFTP for file pulls. It is the only code that talks to the airborne unit
// from the ground.
package sshtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/benjaminesse/DroneSpec/internal/ports"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("sshtransport: host is required")
	}
	if c.User == "" {
		return fmt.Errorf("sshtransport: user is required")
	}
	return nil
}

// Transport holds one SSH connection and one SFTP subsystem session on it.
type Transport struct {
	client *ssh.Client
	sftp   *sftp.Client
}

var _ ports.Transport = (*Transport)(nil)

// Dial connects and opens the SFTP subsystem. The unit lives on a private
// field network with password auth and no provisioned host keys, hence the
// insecure host key callback.
func Dial(cfg Config) (*Transport, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.Timeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}

	return &Transport{client: client, sftp: sc}, nil
}

// RunCommand executes cmd on the unit and returns its stdout split into
// lines. The session is torn down when ctx expires, which unblocks Output.
func (t *Transport) RunCommand(ctx context.Context, cmd string) ([]string, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	out, err := session.Output(cmd)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", cmd, err)
	}

	trimmed := strings.TrimRight(string(out), "\n")
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// CopyFile pulls remotePath into localPath over SFTP, overwriting any
// existing local copy.
func (t *Transport) CopyFile(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := t.sftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(localPath)
		return fmt.Errorf("copy %s: %w", remotePath, err)
	}
	return dst.Close()
}

func (t *Transport) Close() error {
	return errors.Join(t.sftp.Close(), t.client.Close())
}
