package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/videotube/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    []byte
	deletes []*s3.DeleteObjectInput
	putErr  error
	delErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	if f.delErr != nil {
		return nil, f.delErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:           "us-east-1",
		S3RootUser:         "minioadmin",
		S3RootPassword:     "minioadmin",
		S3BaseEndpoint:     "http://127.0.0.1:9000",
		S3Bucket:           "videotube",
		MediaPublicBaseURL: "http://cdn.local/videotube/",
	}
}

func newStoreWithFake(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	origLoad, origNew, origNow := loadDefaultAWSConfig, newS3ClientFromConfig, now
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		now = origNow
	})

	fake := &fakeS3{}
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("credentials not applied")
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not set")
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style not set")
		}
		return fake
	}
	now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }

	s, err := NewS3Store(context.Background(), testConfig())
	require.NoError(t, err)
	return s, fake
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestNewS3Store_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), testConfig())
	assert.ErrorContains(t, err, "no creds")
}

func TestUpload_Success(t *testing.T) {
	s, fake := newStoreWithFake(t)
	p := writeTemp(t, "a.PNG", pngHeader)

	asset, err := s.Upload(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)

	in := fake.puts[0]
	assert.Equal(t, "videotube", *in.Bucket)
	assert.Regexp(t, `^media/2025/03/07/[0-9a-f-]{36}\.png$`, *in.Key)
	assert.Equal(t, "image/png", *in.ContentType)
	assert.Equal(t, int64(len(pngHeader)), *in.ContentLength)
	assert.Equal(t, pngHeader, fake.body)
	assert.Equal(t, "http://cdn.local/videotube/"+*in.Key, asset.URL)
	assert.Equal(t, *in.Key, asset.Key)

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr), "temp file must be removed")
}

func TestUpload_FailureRemovesTempFile(t *testing.T) {
	s, fake := newStoreWithFake(t)
	fake.putErr = errors.New("bucket missing")
	p := writeTemp(t, "a.png", pngHeader)

	asset, err := s.Upload(context.Background(), p)
	assert.Nil(t, asset)
	assert.ErrorContains(t, err, "bucket missing")

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpload_EmptyPathAndMissingFile(t *testing.T) {
	s, fake := newStoreWithFake(t)

	asset, err := s.Upload(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, asset)

	_, err = s.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
	assert.Empty(t, fake.puts)
}

func TestDelete(t *testing.T) {
	s, fake := newStoreWithFake(t)
	ctx := context.Background()

	res, err := s.Delete(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, res)

	res, err = s.Delete(ctx, "http://cdn.local/videotube/media/2025/03/07/x.png")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Key: "media/2025/03/07/x.png", Deleted: true}, res)
	require.Len(t, fake.deletes, 1)
	assert.Equal(t, "videotube", *fake.deletes[0].Bucket)

	_, err = s.Delete(ctx, "http://elsewhere/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)

	fake.delErr = errors.New("denied")
	res, err = s.Delete(ctx, "http://cdn.local/videotube/k")
	assert.ErrorContains(t, err, "denied")
	assert.Equal(t, DeleteResult{Key: "k"}, res)
}
