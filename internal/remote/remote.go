// Package remote talks to the camera archive file store. Every logical step
// of a job opens its own Session and closes it when done; sessions are
// never shared between workers.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/EmmettHwang/ssirn/internal/config"
)

// ErrTransfer matches every error produced by a driver.
var ErrTransfer = errors.New("remote transfer failed")

// TransferError describes a failed remote operation.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransfer) hold for every TransferError.
func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// IsNotExist reports whether err says a remote path does not exist, as
// opposed to the store being unreachable or refusing access. Object stores
// have no directories, so their ChangeDir never fails this way; listing an
// absent prefix is empty instead.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	return &TransferError{Op: op, Path: path, Err: err}
}

// Session is one authenticated connection to the archive. Names passed to
// Retrieve, Store and Delete are relative to the current directory.
type Session interface {
	ChangeDir(path string) error
	List() ([]string, error)
	Retrieve(name string, w io.Writer) error
	Store(name string, r io.Reader) error
	Delete(name string) error
	MakeDir(path string) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Connect(ctx context.Context) (Session, error)
}

// New returns the dialer for the configured driver.
func New(cfg config.Remote) (Dialer, error) {
	switch cfg.Driver {
	case "", "ftp":
		return NewFTP(cfg), nil
	case "sftp":
		return NewSFTP(cfg), nil
	case "s3":
		return NewS3(cfg), nil
	case "gcs":
		return NewGCS(cfg), nil
	case "local":
		if cfg.Root == "" {
			return nil, fmt.Errorf("local remote driver needs remote.root")
		}
		return NewLocal(cfg.Root), nil
	default:
		return nil, fmt.Errorf("unknown remote driver: %s", cfg.Driver)
	}
}

// EnsureDir changes into dir, creating it first if it does not exist.
func EnsureDir(s Session, dir string) error {
	if err := s.ChangeDir(dir); err == nil {
		return nil
	}
	if err := s.MakeDir(dir); err != nil {
		return err
	}
	return s.ChangeDir(dir)
}
