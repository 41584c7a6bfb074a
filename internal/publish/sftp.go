package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/3cpo-dev/xbuild/internal/ssh"
)

// SFTPConfig describes an artifact host reached over SSH.
type SFTPConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	KeyPath    string        `yaml:"key_path"`
	KnownHosts string        `yaml:"known_hosts"`
	RemoteDir  string        `yaml:"remote_dir"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SFTP uploads artifacts into RemoteDir on one host.
type SFTP struct {
	cfg    SFTPConfig
	client *ssh.Client
}

// NewSFTP loads the key and known_hosts file. The host must already be present
// in known_hosts.
func NewSFTP(cfg SFTPConfig) (*SFTP, error) {
	signer, err := ssh.LoadPrivateKeySigner(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	known, err := ssh.HasHost(cfg.KnownHosts, ssh.Address(cfg.Host, cfg.Port))
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, fmt.Errorf("host %s not found in %s", cfg.Host, cfg.KnownHosts)
	}
	cb, err := ssh.LoadKnownHostsCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SFTP{
		cfg: cfg,
		client: &ssh.Client{
			Addr:       ssh.Address(cfg.Host, cfg.Port),
			User:       cfg.User,
			Signer:     signer,
			KnownHosts: cb,
			Timeout:    timeout,
		},
	}, nil
}

func (s *SFTP) Name() string { return "sftp" }

// RemotePath is where artifact ends up on the host.
func (s *SFTP) RemotePath(artifact string) string {
	return path.Join(s.cfg.RemoteDir, filepath.Base(artifact))
}

func (s *SFTP) Publish(ctx context.Context, artifact string) error {
	cli, err := ssh.Dial(ctx, s.client)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.client.Addr, err)
	}
	defer cli.Close()
	return ssh.PushFile(ctx, cli, artifact, s.RemotePath(artifact))
}
