package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

type fakeS3 struct {
	objects       map[string][]byte
	bucketExists  bool
	createdBucket bool
	putErr        error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketExists {
		return nil, errors.New("not found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createdBucket = true
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	msg := &model.ContactMessage{ID: "abc", CreatedAt: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	assert.Equal(t, "contact/2024/03/abc.json", ObjectKey(msg))
}

func TestContactArchive_Save(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	archive := &ContactArchive{client: fake, bucket: "portfolio"}

	require.NoError(t, archive.ensureBucket(context.Background()))
	assert.True(t, fake.createdBucket)

	msg := &model.ContactMessage{Name: "Jane", Email: "jane@example.com", Message: "Hello from the archive"}
	require.NoError(t, archive.Save(context.Background(), msg))

	body, ok := fake.objects[ObjectKey(msg)]
	require.True(t, ok)

	var stored model.ContactMessage
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, msg.ID, stored.ID)
	assert.Equal(t, model.ContactStatusUnread, stored.Status)

	fake.putErr = errors.New("access denied")
	assert.Error(t, archive.Save(context.Background(), &model.ContactMessage{Name: "Jane"}))
}
