package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Dialer maps the archive layout onto keys of one bucket. Directories are
// key prefixes, so MakeDir is a no-op. An endpoint turns on path-style
// addressing for S3-compatible stores such as MinIO.
type S3Dialer struct {
	bucket string
	opts   s3.Options
}

// NewS3 creates an S3 dialer from static credentials.
func NewS3(cfg config.Remote) *S3Dialer {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Dialer{bucket: cfg.Bucket, opts: opts}
}

// Connect builds a client bound to ctx. No network traffic happens until
// the first operation.
func (d *S3Dialer) Connect(ctx context.Context) (Session, error) {
	if d.bucket == "" {
		return nil, wrap("connect", "", fmt.Errorf("remote.bucket is required for s3"))
	}
	client := s3.New(d.opts)
	return &s3Session{
		ctx:      ctx,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   d.bucket,
	}, nil
}

type s3Session struct {
	ctx      context.Context
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string // without leading or trailing slash
}

func (s *s3Session) ChangeDir(dir string) error {
	s.prefix = s.key(dir)
	return nil
}

func (s *s3Session) List() ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(s.ctx)
		if err != nil {
			return nil, wrap("list", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (s *s3Session) Retrieve(name string, w io.Writer) error {
	key := s.key(name)
	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrap("retrieve", key, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return wrap("retrieve", key, err)
	}
	return nil
}

func (s *s3Session) Store(name string, r io.Reader) error {
	key := s.key(name)
	_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	return wrap("store", key, err)
}

func (s *s3Session) Delete(name string) error {
	key := s.key(name)
	_, err := s.client.DeleteObject(s.ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return wrap("delete", key, err)
}

func (s *s3Session) MakeDir(string) error { return nil }

func (s *s3Session) Close() error { return nil }

// key turns a session path into an object key.
func (s *s3Session) key(p string) string {
	if !path.IsAbs(p) {
		p = path.Join("/", s.prefix, p)
	}
	return strings.TrimPrefix(path.Clean(p), "/")
}
