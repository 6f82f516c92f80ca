package meta

import (
	"github.com/eisenwinter/mdqd/metadata"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JwkSupplier exposes the public keys used to sign metadata
type JwkSupplier interface {
	PublicKeys() (jwk.Set, error)
}

// SnapshotSupplier gives access to the current metadata snapshot
type SnapshotSupplier interface {
	All() metadata.Entry
}
