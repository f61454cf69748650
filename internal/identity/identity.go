// Package identity manages a repo's signing-key binding and display name,
// and the registry of local/remote identities ipvc has seen. Grounded on
// IdAPI and the repo_id/repo_name/ids properties in the reference
// implementation, translated from IPFS peer keys to the sign.Signer
// capability.
package identity

import (
	"encoding/json"
	"errors"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/store"
)

// DefaultKeyID is written as a repo's signing key when none has been set,
// mirroring the reference implementation's "self" default (the identity
// that always exists locally).
const DefaultKeyID = "self"

// Info is the display metadata for one identity, set via Registrar.SetLocal.
type Info struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Desc  string `json:"desc,omitempty"`
	Img   string `json:"img,omitempty"`
	Link  string `json:"link,omitempty"`
}

// Registry is the local/remote identity list stored at ipvc/ids.
type Registry struct {
	Local  map[string]Info `json:"local"`
	Remote map[string]Info `json:"remote"`
}

// Registrar reads and writes a repo's identity state against the object
// store.
type Registrar struct {
	s *store.Store
}

// New wraps s as a Registrar.
func New(s *store.Store) *Registrar {
	return &Registrar{s: s}
}

// RepoKeyID returns the signing key bound to repoHex, defaulting to (and
// persisting) DefaultKeyID on first access.
func (r *Registrar) RepoKeyID(repoHex string) (string, error) {
	path := layout.RepoInfo(repoHex, "id")
	data, err := r.s.Read(path)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, store.ErrNotExist) {
		return "", err
	}
	if err := r.s.Write(path, []byte(DefaultKeyID), true, true); err != nil {
		return "", err
	}
	return DefaultKeyID, nil
}

// SetRepoKeyID binds repoHex's commits to keyID.
func (r *Registrar) SetRepoKeyID(repoHex, keyID string) error {
	return r.s.Write(layout.RepoInfo(repoHex, "id"), []byte(keyID), true, true)
}

// RepoName returns the display name set via `ipvc repo name`, or "" if
// unset.
func (r *Registrar) RepoName(repoHex string) (string, error) {
	data, err := r.s.Read(layout.RepoInfo(repoHex, "name"))
	if errors.Is(err, store.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetRepoName sets repoHex's display name.
func (r *Registrar) SetRepoName(repoHex, name string) error {
	return r.s.Write(layout.RepoInfo(repoHex, "name"), []byte(name), true, true)
}

// LoadIds returns the identity registry, seeding it with a bare "self"
// entry on first access.
func (r *Registrar) LoadIds() (Registry, error) {
	data, err := r.s.Read(layout.IdsPath())
	if errors.Is(err, store.ErrNotExist) {
		reg := Registry{Local: map[string]Info{DefaultKeyID: {}}, Remote: map[string]Info{}}
		return reg, r.SaveIds(reg)
	}
	if err != nil {
		return Registry{}, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registry{}, err
	}
	if reg.Local == nil {
		reg.Local = map[string]Info{}
	}
	if reg.Remote == nil {
		reg.Remote = map[string]Info{}
	}
	return reg, nil
}

// SaveIds persists the identity registry.
func (r *Registrar) SaveIds(reg Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return r.s.Write(layout.IdsPath(), data, true, true)
}

// SetLocal merges fields into key's local identity entry, creating it if
// absent.
func (r *Registrar) SetLocal(key string, fields Info) error {
	reg, err := r.LoadIds()
	if err != nil {
		return err
	}
	existing := reg.Local[key]
	mergeInfo(&existing, fields)
	reg.Local[key] = existing
	return r.SaveIds(reg)
}

func mergeInfo(dst *Info, src Info) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.Desc != "" {
		dst.Desc = src.Desc
	}
	if src.Img != "" {
		dst.Img = src.Img
	}
	if src.Link != "" {
		dst.Link = src.Link
	}
}
