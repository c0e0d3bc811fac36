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
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/cardinalhq/framefeed/internal/azureclient"
	"github.com/cardinalhq/framefeed/internal/frameerr"
)

type azureProvider struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzure lists blobs under cfg.Path in container cfg.Bucket.
func NewAzure(_ context.Context, cfg Config) (Provider, error) {
	mgr, err := azureclient.NewManager()
	if err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "azure")
	}
	var opts []azureclient.BlobOption
	if cfg.StorageAccount != "" {
		opts = append(opts, azureclient.WithBlobStorageAccount(cfg.StorageAccount))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, azureclient.WithBlobEndpoint(cfg.Endpoint))
	}
	bc, err := mgr.GetBlob(opts...)
	if err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "azure")
	}
	return &azureProvider{
		client:    bc.Client,
		container: cfg.Bucket,
		prefix:    strings.TrimPrefix(cfg.Path, "/"),
	}, nil
}

func (p *azureProvider) location(name string) frameerr.Location {
	return frameerr.FileLocation(-1, "azure://"+p.container+"/"+name)
}

func (p *azureProvider) list(ctx context.Context, prefix string) ([]entry, error) {
	var entries []entry
	pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.BlobNotFound) {
				err = fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return nil, connectionError(p.location(prefix), "list blobs", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			entries = append(entries, entry{path: *item.Name, size: size})
		}
	}
	return entries, nil
}

func (p *azureProvider) GetFileList(ctx context.Context) ([]Handle, error) {
	dir := p.prefix
	if dir != "" && !strings.HasSuffix(dir, "/") {
		candidates, err := p.list(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if c.path == dir {
				return handlesFor([]entry{c}, p.open)
			}
		}
		dir += "/"
	}

	children, err := p.list(ctx, dir)
	if err != nil {
		return nil, err
	}
	var entries []entry
	for _, c := range children {
		rest := strings.TrimPrefix(c.path, dir)
		if strings.Contains(rest, "/") || !IsSourceName(rest) {
			continue
		}
		entries = append(entries, c)
	}
	return handlesFor(entries, p.open)
}

func (p *azureProvider) open(_ context.Context, name string, size int64) (File, error) {
	return newSectionFile(&azureBlob{client: p.client, container: p.container, name: name, size: size}, size), nil
}

func (p *azureProvider) Close() error { return nil }

type azureBlob struct {
	client    *azblob.Client
	container string
	name      string
	size      int64
}

func (b *azureBlob) location() frameerr.Location {
	return frameerr.FileLocation(-1, "azure://"+b.container+"/"+b.name)
}

func (b *azureBlob) ReadAt(buf []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(buf) == 0 {
		return 0, nil
	}
	count := int64(len(buf))
	if off+count > b.size {
		count = b.size - off
	}

	resp, err := b.client.DownloadStream(context.Background(), b.container, b.name, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: off, Count: count},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.BlobNotFound) {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return 0, connectionError(b.location(), fmt.Sprintf("download range %d+%d", off, count), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	n, err := io.ReadFull(resp.Body, buf[:count])
	if err != nil {
		return n, connectionError(b.location(), fmt.Sprintf("read range %d+%d", off, count), err)
	}
	if int(count) < len(buf) {
		return n, io.EOF
	}
	return n, nil
}
