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
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cardinalhq/framefeed/internal/awsclient"
	"github.com/cardinalhq/framefeed/internal/frameerr"
)

// s3API is the subset of *s3.Client the provider uses.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type s3Provider struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 lists objects under cfg.Path in cfg.Bucket. Any S3-compatible store
// works through cfg.Endpoint and cfg.UsePathStyle.
func NewS3(ctx context.Context, cfg Config) (Provider, error) {
	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "aws")
	}
	var opts []awsclient.S3Option
	if cfg.Region != "" {
		opts = append(opts, awsclient.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(cfg.Endpoint))
	}
	if cfg.UsePathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if cfg.Role != "" {
		opts = append(opts, awsclient.WithRole(cfg.Role))
	}
	return newS3Provider(mgr.S3(ctx, opts...), cfg.Bucket, cfg.Path), nil
}

func newS3Provider(client s3API, bucket, prefix string) *s3Provider {
	return &s3Provider{client: client, bucket: bucket, prefix: strings.TrimPrefix(prefix, "/")}
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	// S3-compatible stores do not always return the modeled types.
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func (p *s3Provider) location(key string) frameerr.Location {
	return frameerr.FileLocation(-1, "s3://"+p.bucket+"/"+key)
}

func (p *s3Provider) GetFileList(ctx context.Context) ([]Handle, error) {
	dir := p.prefix
	if dir != "" && !strings.HasSuffix(dir, "/") {
		head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(dir),
		})
		if err == nil {
			return handlesFor([]entry{{path: dir, size: aws.ToInt64(head.ContentLength)}}, p.open)
		}
		if !isS3NotFound(err) {
			return nil, connectionError(p.location(dir), "head object", err)
		}
		dir += "/"
	}

	var entries []entry
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isS3NotFound(err) {
				err = fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return nil, connectionError(p.location(dir), "list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !IsSourceName(path.Base(key)) {
				continue
			}
			entries = append(entries, entry{path: key, size: aws.ToInt64(obj.Size)})
		}
	}
	return handlesFor(entries, p.open)
}

func (p *s3Provider) open(_ context.Context, key string, size int64) (File, error) {
	return newSectionFile(&s3Object{client: p.client, bucket: p.bucket, key: key, size: size}, size), nil
}

func (p *s3Provider) Close() error { return nil }

// s3Object reads byte ranges of one object.
type s3Object struct {
	client s3API
	bucket string
	key    string
	size   int64
}

func (o *s3Object) location() frameerr.Location {
	return frameerr.FileLocation(-1, "s3://"+o.bucket+"/"+o.key)
}

// ReadAt fetches one byte range. Transport failures are connection errors
// so that opening a file through a retrying opener retries them.
func (o *s3Object) ReadAt(b []byte, off int64) (int, error) {
	if off >= o.size {
		return 0, io.EOF
	}
	if len(b) == 0 {
		return 0, nil
	}
	end := off + int64(len(b)) - 1
	if end >= o.size {
		end = o.size - 1
	}

	resp, err := o.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if isS3NotFound(err) {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return 0, connectionError(o.location(), fmt.Sprintf("get range %d-%d", off, end), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	want := int(end - off + 1)
	n, err := io.ReadFull(resp.Body, b[:want])
	if err != nil {
		return n, connectionError(o.location(), fmt.Sprintf("read range %d-%d", off, end), err)
	}
	if want < len(b) {
		return n, io.EOF
	}
	return n, nil
}
