// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package fileprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/framefeed/internal/frameerr"
)

// memS3 serves objects from a map, ignoring the bucket.
type memS3 struct {
	objects map[string][]byte
	ranges  []string
	// failGets fails that many GetObject calls with a transport error.
	failGets int
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.failGets > 0 {
		m.failGets--
		return nil, errors.New("connection reset by peer")
	}
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	r := strings.TrimPrefix(aws.ToString(in.Range), "bytes=")
	m.ranges = append(m.ranges, r)
	parts := strings.SplitN(r, "-", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body[start : end+1]))}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range m.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(k, prefix), aws.ToString(in.Delimiter)) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(m.objects[k])))})
	}
	return out, nil
}

func TestS3ListsDirectChildren(t *testing.T) {
	client := &memS3{objects: map[string][]byte{
		"train/part-1.parquet":      []byte("one"),
		"train/part-0.parquet":      []byte("zero"),
		"train/_SUCCESS":            nil,
		"train/deep/part-9.parquet": []byte("nine"),
		"other/part-0.parquet":      []byte("x"),
	}}

	handles, err := newS3Provider(client, "bucket", "/train").GetFileList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"train/part-0.parquet", "train/part-1.parquet"}, paths(handles))
	assert.Equal(t, int64(4), handles[0].Size())
}

func TestS3SingleObject(t *testing.T) {
	client := &memS3{objects: map[string][]byte{"train/part-0.parquet": []byte("zero")}}

	handles, err := newS3Provider(client, "bucket", "train/part-0.parquet").GetFileList(context.Background())
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, "train/part-0.parquet", handles[0].Path())
}

func TestS3EmptyPrefix(t *testing.T) {
	client := &memS3{objects: map[string][]byte{"train/a.csv": nil}}

	_, err := newS3Provider(client, "bucket", "train").GetFileList(context.Background())
	assert.ErrorIs(t, err, frameerr.ErrNoSources)
}

func TestS3RangedReads(t *testing.T) {
	body := []byte("0123456789abcdef")
	client := &memS3{objects: map[string][]byte{"d/a.parquet": body}}

	handles, err := newS3Provider(client, "bucket", "d/").GetFileList(context.Background())
	require.NoError(t, err)
	f, err := handles[0].Open(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(buf))

	buf = make([]byte, 8)
	n, err = f.ReadAt(buf, 12)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, "cdef", string(buf[:n]))

	pos, err := f.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	tail, err := io.ReadAll(io.NewSectionReader(f, pos, 4))
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(tail))

	assert.Equal(t, "10-13", client.ranges[0])
	assert.Equal(t, fmt.Sprintf("12-%d", len(body)-1), client.ranges[1])
}

func TestS3ReadErrorsAreConnectionErrors(t *testing.T) {
	client := &memS3{objects: map[string][]byte{"d/a.parquet": []byte("0123456789")}, failGets: 1}

	handles, err := newS3Provider(client, "bucket", "d/").GetFileList(context.Background())
	require.NoError(t, err)
	f, err := handles[0].Open(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, 0)
	assert.ErrorIs(t, err, frameerr.ErrConnection)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "s3://bucket/d/a.parquet")

	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	delete(client.objects, "d/a.parquet")
	_, err = f.ReadAt(buf, 0)
	assert.ErrorIs(t, err, frameerr.ErrConnection)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.True(t, isS3NotFound(fmt.Errorf("head: %w", &types.NoSuchKey{})))
	assert.True(t, isS3NotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isS3NotFound(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.False(t, isS3NotFound(errors.New("timeout")))
}
