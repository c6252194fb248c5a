// Package media hands uploaded files to the S3-compatible object store that
// hosts user avatars and cover images, and removes them again by URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/videotube/internal/filex"
	sc "github.com/dmitrijs2005/videotube/internal/server/config"
	"github.com/google/uuid"
)

// ErrForeignURL is returned by Delete for URLs this store did not produce.
var ErrForeignURL = errors.New("url does not belong to the media store")

// objectAPI is the part of *s3.Client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

// Asset is a stored object.
type Asset struct {
	URL string
	Key string
}

// DeleteResult reports what Delete removed.
type DeleteResult struct {
	Key     string
	Deleted bool
}

// S3Store uploads into one bucket and serves objects under a public base URL.
type S3Store struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewS3Store builds the S3 client from the configured credentials and endpoint.
func NewS3Store(ctx context.Context, c *sc.Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		bucket:  c.S3Bucket,
		baseURL: strings.TrimRight(c.MediaPublicBaseURL, "/"),
	}, nil
}

// StorageKey returns a fresh object key for a file with extension ext. Avatars
// and cover images share the date-partitioned media/ prefix.
func StorageKey(ext string) string {
	d := now()
	return fmt.Sprintf("media/%04d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

// Upload stores the file at localPath and returns its public URL. The local
// file is removed whether or not the upload succeeds. An empty localPath
// yields a nil Asset and no error.
func (s *S3Store) Upload(ctx context.Context, localPath string) (*Asset, error) {
	if localPath == "" {
		return nil, nil
	}
	defer func() { _ = filex.Remove(localPath) }()

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	contentType, err := sniff(f)
	if err != nil {
		return nil, err
	}

	key := StorageKey(filepath.Ext(localPath))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &Asset{URL: s.URL(key), Key: key}, nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	return s.baseURL + "/" + key
}

// Delete removes the object behind url. An empty url is a no-op.
func (s *S3Store) Delete(ctx context.Context, url string) (DeleteResult, error) {
	if url == "" {
		return DeleteResult{}, nil
	}

	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return DeleteResult{}, fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	key := strings.TrimPrefix(url, prefix)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return DeleteResult{Key: key}, fmt.Errorf("delete object: %w", err)
	}

	return DeleteResult{Key: key, Deleted: true}, nil
}

// sniff detects the content type from the first bytes of f and rewinds it.
func sniff(f *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}
