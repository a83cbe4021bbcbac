package bench

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/statelift/internal/errors"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func testReport() *Report {
	r := newReport(Config{StoreName: "rows", Rows: 10, LotsRows: 20, Iterations: 1})
	r.Run.Timestamp = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	r.Results = []Result{{Op: "create", Iterations: 1, MeanMS: 1.5}}
	return r
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw    string
		want   Target
		errors bool
	}{
		{raw: "s3://bucket", want: Target{Bucket: "bucket"}},
		{raw: "s3://bucket/", want: Target{Bucket: "bucket"}},
		{raw: "s3://bucket/bench/nightly/", want: Target{Bucket: "bucket", Prefix: "bench/nightly"}},
		{raw: "bucket/prefix", errors: true},
		{raw: "s3://", errors: true},
		{raw: "gs://bucket", errors: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.errors {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, "SL300"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "s3://b", Target{Bucket: "b"}.String())
	assert.Equal(t, "s3://b/p/q", Target{Bucket: "b", Prefix: "p/q"}.String())
}

func TestUploaderUpload(t *testing.T) {
	fake := &fakeS3{}
	u := NewUploaderWithClient(fake, Target{Bucket: "reports", Prefix: "bench"}, nil)

	location, err := u.Upload(context.Background(), testReport())
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	key := aws.ToString(fake.input.Key)
	assert.Equal(t, "reports", aws.ToString(fake.input.Bucket))
	assert.True(t, strings.HasPrefix(key, "bench/rows-20260304T050607Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)
	assert.Equal(t, "s3://reports/"+key, location)
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))
	assert.Equal(t, "rows", fake.input.Metadata["store"])
	assert.Contains(t, fake.body, `"op": "create"`)
}

func TestUploaderKeyWithoutPrefix(t *testing.T) {
	u := NewUploaderWithClient(&fakeS3{}, Target{Bucket: "reports"}, nil)
	assert.True(t, strings.HasPrefix(u.Key(testReport()), "rows-"))
}

func TestUploaderFailure(t *testing.T) {
	denied := fmt.Errorf("access denied")
	fake := &fakeS3{err: denied}
	u := NewUploaderWithClient(fake, Target{Bucket: "reports"}, nil)

	_, err := u.Upload(context.Background(), testReport())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "SL301"))
	assert.ErrorIs(t, err, denied)
}

func TestNewUploader(t *testing.T) {
	u, err := NewUploader("s3://reports/bench", UploadOptions{
		Endpoint:    "http://127.0.0.1:9000",
		Credentials: aws.AnonymousCredentials{},
	})
	require.NoError(t, err)
	assert.Equal(t, Target{Bucket: "reports", Prefix: "bench"}, u.Target())

	_, err = NewUploader("reports", UploadOptions{})
	assert.True(t, errors.HasCode(err, "SL300"))
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	_, err := envCredentials(context.Background())
	assert.True(t, errors.HasCode(err, "SL301"))

	t.Setenv("AWS_ACCESS_KEY_ID", "id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	creds, err := envCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
}
