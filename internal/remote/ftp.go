package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/jlaffaye/ftp"
)

// FTPDialer connects to the archive over plain FTP.
type FTPDialer struct {
	addr     string
	user     string
	password string
	timeout  time.Duration
}

// NewFTP creates an FTP dialer. Port defaults to 21.
func NewFTP(cfg config.Remote) *FTPDialer {
	port := cfg.Port
	if port == 0 {
		port = 21
	}
	return &FTPDialer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		user:     cfg.User,
		password: cfg.Password,
		timeout:  timeoutOrDefault(cfg.Timeout),
	}
}

// Connect dials and logs in.
func (d *FTPDialer) Connect(ctx context.Context) (Session, error) {
	conn, err := ftp.Dial(d.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(d.timeout))
	if err != nil {
		return nil, wrap("connect", d.addr, err)
	}
	if err := conn.Login(d.user, d.password); err != nil {
		_ = conn.Quit()
		return nil, wrap("login", d.addr, err)
	}
	return &ftpSession{conn: conn, cwd: "/"}, nil
}

type ftpSession struct {
	conn *ftp.ServerConn
	cwd  string
}

func (s *ftpSession) ChangeDir(dir string) error {
	if err := s.conn.ChangeDir(dir); err != nil {
		return wrap("cwd", dir, changeDirError(err))
	}
	s.cwd = s.resolve(dir)
	return nil
}

// changeDirError marks a 550 reply to CWD as a missing directory. Other
// replies and network errors stay transfer failures.
func changeDirError(err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) && reply.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%w: %v", fs.ErrNotExist, err)
	}
	return err
}

func (s *ftpSession) List() ([]string, error) {
	entries, err := s.conn.NameList(s.cwd)
	if err != nil {
		return nil, wrap("list", s.cwd, err)
	}
	// Some servers answer NLST with full paths.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := path.Base(e)
		if name == "." || name == ".." || name == "/" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *ftpSession) Retrieve(name string, w io.Writer) error {
	p := s.resolve(name)
	resp, err := s.conn.Retr(p)
	if err != nil {
		return wrap("retrieve", p, err)
	}
	defer resp.Close()
	if _, err := io.Copy(w, resp); err != nil {
		return wrap("retrieve", p, err)
	}
	return nil
}

func (s *ftpSession) Store(name string, r io.Reader) error {
	p := s.resolve(name)
	return wrap("store", p, s.conn.Stor(p, r))
}

func (s *ftpSession) Delete(name string) error {
	p := s.resolve(name)
	return wrap("delete", p, s.conn.Delete(p))
}

// MakeDir creates dir and any missing parents.
func (s *ftpSession) MakeDir(dir string) error {
	target := s.resolve(dir)
	cur := "/"
	for _, part := range strings.Split(target, "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		if err := s.conn.ChangeDir(cur); err == nil {
			continue
		}
		if err := s.conn.MakeDir(cur); err != nil {
			return wrap("mkdir", cur, err)
		}
	}
	// Restore the working directory the probes above moved away from.
	return wrap("cwd", s.cwd, s.conn.ChangeDir(s.cwd))
}

func (s *ftpSession) Close() error {
	if err := s.conn.Quit(); err != nil {
		return wrap("quit", "", err)
	}
	return nil
}

func (s *ftpSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func timeoutOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
