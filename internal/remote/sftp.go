package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPDialer connects to the archive over SSH. Password or private key
// (base64 or raw PEM) authentication is supported.
type SFTPDialer struct {
	addr       string
	user       string
	password   string
	privateKey string
	timeout    time.Duration
}

// NewSFTP creates an SFTP dialer. Port 21 (the FTP default) is taken to
// mean "unset" and replaced with 22.
func NewSFTP(cfg config.Remote) *SFTPDialer {
	port := cfg.Port
	if port == 0 || port == 21 {
		port = 22
	}
	return &SFTPDialer{
		addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		user:       cfg.User,
		password:   cfg.Password,
		privateKey: cfg.PrivateKey,
		timeout:    timeoutOrDefault(cfg.Timeout),
	}
}

func (d *SFTPDialer) authMethods() ([]ssh.AuthMethod, error) {
	if d.privateKey != "" {
		keyBytes, err := base64.StdEncoding.DecodeString(d.privateKey)
		if err != nil {
			keyBytes = []byte(d.privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if d.password != "" {
		return []ssh.AuthMethod{ssh.Password(d.password)}, nil
	}
	return nil, fmt.Errorf("no auth method configured; set remote.password or remote.private_key")
}

// Connect dials, performs the SSH handshake and opens an SFTP subsystem.
func (d *SFTPDialer) Connect(ctx context.Context) (Session, error) {
	auths, err := d.authMethods()
	if err != nil {
		return nil, wrap("connect", d.addr, err)
	}
	sshConfig := &ssh.ClientConfig{
		User:            d.user,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.timeout,
	}

	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, wrap("connect", d.addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, d.addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, wrap("handshake", d.addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, wrap("connect", d.addr, err)
	}
	return &sftpSession{ssh: sshClient, client: client, cwd: "/"}, nil
}

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
	cwd    string
}

func (s *sftpSession) ChangeDir(dir string) error {
	target := s.resolve(dir)
	info, err := s.client.Stat(target)
	if err != nil {
		return wrap("cwd", target, err)
	}
	if !info.IsDir() {
		return wrap("cwd", target, fmt.Errorf("not a directory"))
	}
	s.cwd = target
	return nil
}

func (s *sftpSession) List() ([]string, error) {
	entries, err := s.client.ReadDir(s.cwd)
	if err != nil {
		return nil, wrap("list", s.cwd, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *sftpSession) Retrieve(name string, w io.Writer) error {
	p := s.resolve(name)
	f, err := s.client.Open(p)
	if err != nil {
		return wrap("retrieve", p, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return wrap("retrieve", p, err)
	}
	return nil
}

func (s *sftpSession) Store(name string, r io.Reader) error {
	p := s.resolve(name)
	f, err := s.client.Create(p)
	if err != nil {
		return wrap("store", p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return wrap("store", p, err)
	}
	return wrap("store", p, f.Close())
}

func (s *sftpSession) Delete(name string) error {
	p := s.resolve(name)
	return wrap("delete", p, s.client.Remove(p))
}

// MakeDir creates each missing segment of dir, like os.MkdirAll.
func (s *sftpSession) MakeDir(dir string) error {
	target := s.resolve(dir)
	if _, err := s.client.Stat(target); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return wrap("stat", target, err)
	}
	return wrap("mkdir", target, s.client.MkdirAll(target))
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if cerr := s.ssh.Close(); err == nil {
		err = cerr
	}
	return wrap("close", "", err)
}

func (s *sftpSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}
