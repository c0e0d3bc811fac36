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

package azureclient

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type BlobClient struct {
	Client   *azblob.Client
	Endpoint string
}

type blobConfig struct {
	StorageAccount string
	Endpoint       string
}

type BlobOption func(*blobConfig)

func WithBlobStorageAccount(storageAccount string) BlobOption {
	return func(c *blobConfig) {
		c.StorageAccount = storageAccount
	}
}

func WithBlobEndpoint(endpoint string) BlobOption {
	return func(c *blobConfig) {
		c.Endpoint = endpoint
	}
}

// DefaultEndpoint is the public-cloud blob endpoint for an account.
func DefaultEndpoint(storageAccount string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
}

func (c blobConfig) endpoint() (string, error) {
	if c.Endpoint != "" {
		if !strings.HasSuffix(c.Endpoint, "/") {
			return c.Endpoint + "/", nil
		}
		return c.Endpoint, nil
	}
	if c.StorageAccount == "" {
		return "", fmt.Errorf("storage account or endpoint is required")
	}
	return DefaultEndpoint(c.StorageAccount), nil
}

// GetBlob returns a cached client for the configured endpoint.
func (m *Manager) GetBlob(opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}
	endpoint, err := bc.endpoint()
	if err != nil {
		return nil, err
	}

	m.RLock()
	client, ok := m.blobClients[endpoint]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.blobClients[endpoint]; ok {
		return client, nil
	}
	blobClient, err := azblob.NewClient(endpoint, m.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	client = &BlobClient{Client: blobClient, Endpoint: endpoint}
	m.blobClients[endpoint] = client
	return client, nil
}
