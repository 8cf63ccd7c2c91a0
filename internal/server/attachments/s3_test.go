package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	sc "github.com/dmitrijs2005/enquirykeeper/internal/server/config"
)

type fakeObjects struct {
	objects map[string]*s3.PutObjectInput
	data    map[string][]byte
	puts    int
	heads   int

	headErr error
	putErr  error
	getErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]*s3.PutObjectInput{}, data: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = in
	f.data[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.data[*in.Key]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.data[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(b)),
		ContentType: f.objects[*in.Key].ContentType,
	}, nil
}

func newTestS3Store(t *testing.T, f *fakeObjects) *S3Store {
	t.Helper()

	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			_ = fn(&lo)
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{Region: lo.Region}, nil
	}

	var endpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		endpoint = aws.ToString(o.BaseEndpoint)
		assert.True(t, o.UsePathStyle)
		return f
	}

	s, err := NewS3Store(context.Background(), &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "enquiries",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", endpoint)
	return s
}

func TestNewS3Store_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), &sc.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load aws config")
}

func TestS3Store_PutGet(t *testing.T) {
	f := newFakeObjects()
	s := newTestS3Store(t, f)
	ctx := context.Background()

	key, err := s.Put(ctx, AudioPrefix, Upload{Filename: "sample.mp3", ContentType: "audio/mpeg", Data: []byte("mp3")})
	require.NoError(t, err)
	assert.Equal(t, KeyFor(AudioPrefix, []byte("mp3")), key)
	assert.Equal(t, "sample.mp3", f.objects[key].Metadata["filename"])
	assert.Equal(t, "enquiries", *f.objects[key].Bucket)

	b, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), b.Data)
	assert.Equal(t, "audio/mpeg", b.ContentType)
}

func TestS3Store_PutSkipsExisting(t *testing.T) {
	f := newFakeObjects()
	s := newTestS3Store(t, f)
	ctx := context.Background()

	_, err := s.Put(ctx, PhotoPrefix, Upload{Data: []byte("jeff")})
	require.NoError(t, err)
	_, err = s.Put(ctx, PhotoPrefix, Upload{Data: []byte("jeff")})
	require.NoError(t, err)

	assert.Equal(t, 1, f.puts)
	assert.Equal(t, 2, f.heads)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFakeObjects()
	f.headErr = errors.New("forbidden")
	s := newTestS3Store(t, f)
	_, err := s.Put(ctx, PhotoPrefix, Upload{Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "head object")
	assert.Equal(t, 0, f.puts)

	f = newFakeObjects()
	f.putErr = errors.New("timeout")
	s = newTestS3Store(t, f)
	_, err = s.Put(ctx, PhotoPrefix, Upload{Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object")

	_, err = s.Get(ctx, "photo/unknown")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	f.getErr = errors.New("conn reset")
	_, err = s.Get(ctx, "photo/unknown")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}
