package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Directory is a file-backed AddressResolver. The engine does not own user
// accounts, so operators provide a JSON map of user id to email address
// exported from the identity provider.
type Directory struct {
	mu        sync.RWMutex
	addresses map[uuid.UUID]string
}

// LoadDirectory reads an address directory from a JSON file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read address directory: %w", err)
	}

	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse address directory: %w", err)
	}

	addresses := make(map[uuid.UUID]string, len(raw))
	for id, addr := range raw {
		userID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in address directory", id)
		}
		addresses[userID] = addr
	}
	return &Directory{addresses: addresses}, nil
}

func (d *Directory) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addresses[userID]
	if !ok {
		return "", fmt.Errorf("no address on file for user %s", userID)
	}
	return addr, nil
}
