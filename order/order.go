package order

import (
	"fmt"

	"github.com/docql/docql/field"
)

// Which indicates the direction of a sort key.
type Which bool

const (
	Asc  Which = false
	Desc Which = true
)

func (w Which) String() string {
	if w == Desc {
		return "desc"
	}
	return "asc"
}

// Direction returns the engine's numeric encoding of the direction.
func (w Which) Direction() int {
	if w == Desc {
		return -1
	}
	return 1
}

type SortKey struct {
	Key   field.Path
	Order Which
}

func NewSortKey(key field.Path, order Which) SortKey {
	return SortKey{key, order}
}

func (s SortKey) Equal(to SortKey) bool {
	return s.Order == to.Order && s.Key.Equal(to.Key)
}

func (s SortKey) String() string {
	return fmt.Sprintf("%s:%s", s.Key, s.Order)
}

type SortKeys []SortKey

func (s SortKeys) Primary() SortKey { return s[0] }
func (s SortKeys) IsNil() bool      { return len(s) == 0 }

func (s SortKeys) Equal(to SortKeys) bool {
	if len(s) != len(to) {
		return false
	}
	for k := range s {
		if !s[k].Equal(to[k]) {
			return false
		}
	}
	return true
}
