package settlement

import "github.com/xraph/settlement/id"

// ID is the primary identifier type for all settlement entities.
type ID = id.ID

// SessionID identifies a settlement session.
type SessionID = id.SessionID
