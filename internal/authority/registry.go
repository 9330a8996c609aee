package authority

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownAuthority is returned for ids that were never registered.
var ErrUnknownAuthority = errors.New("unknown authority")

// Registry holds the authorities allowed to move value without a signature.
// Each authority proves itself with a capability token; issuers additionally
// create value from outside the ledger and hold no balance.
type Registry struct {
	capabilities map[string][]byte
	issuers      map[string]struct{}
}

// NewRegistry builds a registry from id→token pairs and the ids acting as issuers.
func NewRegistry(capabilities map[string]string, issuers []string) (*Registry, error) {
	r := &Registry{
		capabilities: make(map[string][]byte, len(capabilities)),
		issuers:      make(map[string]struct{}, len(issuers)),
	}
	for id, token := range capabilities {
		if id == "" || token == "" {
			return nil, errors.New("authority id and capability cannot be empty")
		}
		r.capabilities[id] = []byte(token)
	}
	for _, id := range issuers {
		if _, ok := r.capabilities[id]; !ok {
			return nil, ErrUnknownAuthority
		}
		r.issuers[id] = struct{}{}
	}
	return r, nil
}

// Register adds an authority after construction, e.g. one the process
// grants itself for multi-sig execution. Call it before the registry is shared.
func (r *Registry) Register(id, capability string) error {
	if id == "" || capability == "" {
		return errors.New("authority id and capability cannot be empty")
	}
	if _, ok := r.capabilities[id]; ok {
		return fmt.Errorf("authority %s already registered", id)
	}
	r.capabilities[id] = []byte(capability)
	return nil
}

// IsAuthority reports whether id is a registered authority.
func (r *Registry) IsAuthority(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.capabilities[id]
	return ok
}

// IsIssuer reports whether id is an issuing authority.
func (r *Registry) IsIssuer(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.issuers[id]
	return ok
}

// Verify checks capability against the token registered for id.
func (r *Registry) Verify(id, capability string) bool {
	if r == nil || capability == "" {
		return false
	}
	expected, ok := r.capabilities[id]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(capability), expected) == 1
}

// IDs returns the registered authority ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.capabilities))
	for id := range r.capabilities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
