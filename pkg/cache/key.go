package cache

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind identifies which card a cached artifact holds.
type Kind int

const (
	// KindPortrait is the character portrait card.
	KindPortrait Kind = iota

	// KindEquipment is the equipment summary card.
	KindEquipment
)

// Kinds lists every card kind in route registration order.
var Kinds = []Kind{KindPortrait, KindEquipment}

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindPortrait:
		return "portrait"
	case KindEquipment:
		return "equipment"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Namespace returns the key namespace tag for the kind.
func (k Kind) Namespace() string {
	if k == KindEquipment {
		return "img:eq"
	}
	return "img"
}

// Dir returns the directory (relative to the store root) holding the kind's files.
func (k Kind) Dir() string {
	if k == KindEquipment {
		return filepath.Join("img", "eq")
	}
	return "img"
}

// PathSegment returns the URL segment inserted before "id/" or "name/" in gateway routes.
func (k Kind) PathSegment() string {
	if k == KindEquipment {
		return "equipments/"
	}
	return ""
}

// Key identifies one cacheable rendered artifact.
type Key struct {
	// Kind selects the namespace.
	Kind Kind

	// CharacterID is the resolved numeric character identifier.
	CharacterID int64
}

// NewKey builds a key for the given kind and character.
func NewKey(kind Kind, characterID int64) Key {
	return Key{Kind: kind, CharacterID: characterID}
}

// String generates the namespaced key string.
// Format: img:<id> for portraits, img:eq:<id> for equipment cards.
//
// Example:
//
//	img:eq:12345
func (k Key) String() string {
	return k.Kind.Namespace() + ":" + strconv.FormatInt(k.CharacterID, 10)
}

// FileName returns the artifact path relative to a store root.
func (k Key) FileName() string {
	return filepath.Join(k.Kind.Dir(), strconv.FormatInt(k.CharacterID, 10)+".png")
}

// ParseKey parses a key string produced by Key.String.
func ParseKey(s string) (Key, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	var kind Kind
	switch s[:idx] {
	case KindPortrait.Namespace():
		kind = KindPortrait
	case KindEquipment.Namespace():
		kind = KindEquipment
	default:
		return Key{}, fmt.Errorf("%w: unknown namespace in %q", ErrInvalidKey, s)
	}

	id, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return Key{}, fmt.Errorf("%w: bad character id in %q", ErrInvalidKey, s)
	}

	return Key{Kind: kind, CharacterID: id}, nil
}
