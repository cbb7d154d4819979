package refstore

import "github.com/objectrepo/corestore/internal/txn"

// ApplyUpdate applies one queued transaction ref update, making RefStore a
// txn.RefWriter. An update with a non-empty Collection is written as a
// collection-scoped ref under mirrors/; any other update is a flat or
// remote-scoped ref written through WriteRef.
func (s *RefStore) ApplyUpdate(u txn.RefUpdate) error {
	if u.Collection != "" {
		return s.WriteCollectionRef(u.Collection, u.Name, u.Digest)
	}
	if u.IsAlias {
		return s.WriteRef(u.Remote, u.Name, u.Digest, u.Alias)
	}
	return s.WriteRef(u.Remote, u.Name, u.Digest, "")
}
