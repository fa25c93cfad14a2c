package index

import (
	"fmt"

	"github.com/google/uuid"
)

// LogicalIndex is the stable identity of one document collection. Readers
// and writers never address physical indexes directly; they go through the
// two aliases derived from the logical name. Physical generations carry a
// random suffix so concurrent migrations cannot collide on names.
type LogicalIndex struct {
	Name     string
	Mapping  map[string]any
	Settings map[string]any
}

// ReadAlias is the name queries are served from
func (l LogicalIndex) ReadAlias() string {
	return l.Name
}

// WriteAlias is the name mutations are written to
func (l LogicalIndex) WriteAlias() string {
	return l.Name + ".write"
}

// NewGenerationName allocates a collision-resistant physical index name
func (l LogicalIndex) NewGenerationName() string {
	return fmt.Sprintf("%s_%s", l.Name, uuid.New().String())
}
