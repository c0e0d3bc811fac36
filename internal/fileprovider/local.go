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
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/cardinalhq/framefeed/internal/frameerr"
)

type localProvider struct {
	fs   afero.Fs
	root string
}

// NewLocal lists files on an afero filesystem. Production uses afero.NewOsFs.
func NewLocal(fsys afero.Fs, root string) Provider {
	return &localProvider{fs: fsys, root: filepath.Clean(root)}
}

func (p *localProvider) GetFileList(_ context.Context) ([]Handle, error) {
	readDir := func(dir string) ([]fs.FileInfo, error) {
		return afero.ReadDir(p.fs, dir)
	}
	entries, err := listInfos(p.root, p.fs.Stat, readDir, filepath.Join)
	if err != nil {
		return nil, err
	}
	return handlesFor(entries, p.open)
}

func (p *localProvider) open(_ context.Context, path string, _ int64) (File, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return nil, connectionError(frameerr.FileLocation(-1, path), "open", err)
	}
	return f, nil
}

func (p *localProvider) Close() error { return nil }
