package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/EmmettHwang/ssirn/internal/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSDialer maps the archive layout onto objects of one Cloud Storage
// bucket. Without a credentials file the application default credentials
// are used.
type GCSDialer struct {
	bucket          string
	credentialsFile string
}

// NewGCS creates a Cloud Storage dialer.
func NewGCS(cfg config.Remote) *GCSDialer {
	return &GCSDialer{bucket: cfg.Bucket, credentialsFile: cfg.CredentialsFile}
}

// Connect creates a storage client for the session.
func (d *GCSDialer) Connect(ctx context.Context) (Session, error) {
	if d.bucket == "" {
		return nil, wrap("connect", "", fmt.Errorf("remote.bucket is required for gcs"))
	}
	var opts []option.ClientOption
	if d.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(d.credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, wrap("connect", d.bucket, err)
	}
	return &gcsSession{ctx: ctx, client: client, bucket: client.Bucket(d.bucket)}, nil
}

type gcsSession struct {
	ctx    context.Context
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func (s *gcsSession) ChangeDir(dir string) error {
	s.prefix = s.object(dir)
	return nil
}

func (s *gcsSession) List() ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	it := s.bucket.Objects(s.ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrap("list", prefix, err)
		}
		// Sub-directories come back with only Prefix set.
		full := attrs.Name
		if full == "" {
			full = strings.TrimSuffix(attrs.Prefix, "/")
		}
		if name := strings.TrimPrefix(full, prefix); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *gcsSession) Retrieve(name string, w io.Writer) error {
	obj := s.object(name)
	r, err := s.bucket.Object(obj).NewReader(s.ctx)
	if err != nil {
		return wrap("retrieve", obj, err)
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return wrap("retrieve", obj, err)
	}
	return nil
}

func (s *gcsSession) Store(name string, r io.Reader) error {
	obj := s.object(name)
	wc := s.bucket.Object(obj).NewWriter(s.ctx)
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return wrap("store", obj, err)
	}
	return wrap("store", obj, wc.Close())
}

func (s *gcsSession) Delete(name string) error {
	obj := s.object(name)
	return wrap("delete", obj, s.bucket.Object(obj).Delete(s.ctx))
}

func (s *gcsSession) MakeDir(string) error { return nil }

func (s *gcsSession) Close() error {
	return wrap("close", "", s.client.Close())
}

func (s *gcsSession) object(p string) string {
	if !path.IsAbs(p) {
		p = path.Join("/", s.prefix, p)
	}
	return strings.TrimPrefix(path.Clean(p), "/")
}
