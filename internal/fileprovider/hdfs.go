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
	"io/fs"
	"net"
	"path"
	"strconv"

	"github.com/colinmarc/hdfs/v2"

	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/retry"
)

// hdfsClient is the subset of *hdfs.Client the provider uses.
type hdfsClient interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(dirname string) ([]fs.FileInfo, error)
	Open(name string) (*hdfs.FileReader, error)
	Close() error
}

type hdfsProvider struct {
	client hdfsClient
	root   string
}

// NewHDFS connects to the namenode at cfg.Host:cfg.Port, retrying the
// connection per policy.
func NewHDFS(ctx context.Context, cfg Config, policy retry.Policy) (Provider, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := retry.Do(ctx, policy, "connect to hdfs", func(context.Context) (*hdfs.Client, error) {
		c, err := hdfs.NewClient(hdfs.ClientOptions{
			Addresses: []string{addr},
			User:      cfg.User,
		})
		if err != nil {
			return nil, connectionError(frameerr.NoLocation, "connect to "+addr, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return &hdfsProvider{client: client, root: path.Clean(cfg.Path)}, nil
}

func (p *hdfsProvider) GetFileList(_ context.Context) ([]Handle, error) {
	entries, err := listInfos(p.root, p.client.Stat, p.client.ReadDir, path.Join)
	if err != nil {
		return nil, err
	}
	return handlesFor(entries, p.open)
}

func (p *hdfsProvider) open(_ context.Context, name string, _ int64) (File, error) {
	f, err := p.client.Open(name)
	if err != nil {
		return nil, connectionError(frameerr.FileLocation(-1, name), "open", err)
	}
	return f, nil
}

func (p *hdfsProvider) Close() error {
	return p.client.Close()
}
