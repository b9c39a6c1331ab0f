package subfund

import "github.com/xraph/subfund/id"

// ID is the primary identifier type for all Subfund entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
