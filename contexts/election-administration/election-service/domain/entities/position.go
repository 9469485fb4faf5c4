package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

type PositionScope string

const (
	ScopeGlobal    PositionScope = "global"
	ScopeInstitute PositionScope = "institute"
)

// PositionKey identifies one ballot section: either a global position or an
// institute-scoped position bound to one institute. The zero value is
// invalid. Keys compare with ==.
type PositionKey struct {
	scope     PositionScope
	institute string
	name      string
}

func GlobalPosition(name string) PositionKey {
	return PositionKey{scope: ScopeGlobal, name: strings.TrimSpace(name)}
}

func ScopedPosition(institute string, name string) PositionKey {
	return PositionKey{
		scope:     ScopeInstitute,
		institute: strings.TrimSpace(institute),
		name:      strings.TrimSpace(name),
	}
}

func (k PositionKey) Scope() PositionScope { return k.scope }
func (k PositionKey) Institute() string    { return k.institute }
func (k PositionKey) Name() string         { return k.name }
func (k PositionKey) Scoped() bool         { return k.scope == ScopeInstitute }

func (k PositionKey) IsZero() bool {
	return k == (PositionKey{})
}

// StorageKey is the persisted selection key. It is only ever formatted from a
// key, never parsed back into one.
func (k PositionKey) StorageKey() string {
	if k.Scoped() {
		return k.institute + "-" + k.name
	}
	return k.name
}

func (k PositionKey) String() string {
	if k.Scoped() {
		return fmt.Sprintf("scoped(%s, %s)", k.institute, k.name)
	}
	return fmt.Sprintf("global(%s)", k.name)
}

type positionKeyJSON struct {
	Scope     PositionScope `json:"scope"`
	Institute string        `json:"institute,omitempty"`
	Position  string        `json:"position"`
}

func (k PositionKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionKeyJSON{Scope: k.scope, Institute: k.institute, Position: k.name})
}

func (k *PositionKey) UnmarshalJSON(raw []byte) error {
	var payload positionKeyJSON
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	switch payload.Scope {
	case ScopeGlobal:
		*k = GlobalPosition(payload.Position)
	case ScopeInstitute:
		*k = ScopedPosition(payload.Institute, payload.Position)
	default:
		return fmt.Errorf("unknown position scope %q", payload.Scope)
	}
	return nil
}

type PositionDefinition struct {
	Name          string
	MaxSelections int
	Scope         PositionScope
}

// BallotDefinition is the ordered ballot layout for one election cycle.
type BallotDefinition struct {
	Positions  []PositionDefinition
	Institutes []string
}

func (d BallotDefinition) Position(name string) (PositionDefinition, bool) {
	name = strings.TrimSpace(name)
	for _, position := range d.Positions {
		if position.Name == name {
			return position, true
		}
	}
	return PositionDefinition{}, false
}

func (d BallotDefinition) HasInstitute(institute string) bool {
	for _, item := range d.Institutes {
		if item == institute {
			return true
		}
	}
	return false
}

// Lookup resolves the definition behind a key, rejecting keys whose scope does
// not match the position or whose institute is unknown.
func (d BallotDefinition) Lookup(key PositionKey) (PositionDefinition, bool) {
	position, ok := d.Position(key.Name())
	if !ok || position.Scope != key.Scope() {
		return PositionDefinition{}, false
	}
	if key.Scoped() && !d.HasInstitute(key.Institute()) {
		return PositionDefinition{}, false
	}
	return position, true
}

// SectionsFor returns the keys a voter from institute sees, in ballot order:
// globals first, then the voter's own scoped positions.
func (d BallotDefinition) SectionsFor(institute string) []PositionKey {
	keys := make([]PositionKey, 0, len(d.Positions))
	for _, position := range d.Positions {
		if position.Scope == ScopeGlobal {
			keys = append(keys, GlobalPosition(position.Name))
		}
	}
	if !d.HasInstitute(institute) {
		return keys
	}
	for _, position := range d.Positions {
		if position.Scope == ScopeInstitute {
			keys = append(keys, ScopedPosition(institute, position.Name))
		}
	}
	return keys
}

// AllKeys returns every tabulatable key across all institutes.
func (d BallotDefinition) AllKeys() []PositionKey {
	keys := make([]PositionKey, 0, len(d.Positions)*(1+len(d.Institutes)))
	for _, position := range d.Positions {
		if position.Scope == ScopeGlobal {
			keys = append(keys, GlobalPosition(position.Name))
		}
	}
	for _, institute := range d.Institutes {
		for _, position := range d.Positions {
			if position.Scope == ScopeInstitute {
				keys = append(keys, ScopedPosition(institute, position.Name))
			}
		}
	}
	return keys
}

// Problems lists structural defects; an empty result means the definition
// is usable.
func (d BallotDefinition) Problems() []string {
	problems := make([]string, 0)
	if len(d.Positions) == 0 {
		problems = append(problems, "definition has no positions")
	}
	seen := make(map[string]struct{}, len(d.Positions))
	hasScoped := false
	for _, position := range d.Positions {
		if strings.TrimSpace(position.Name) == "" {
			problems = append(problems, "position name is empty")
			continue
		}
		if _, dup := seen[position.Name]; dup {
			problems = append(problems, "duplicate position "+position.Name)
		}
		seen[position.Name] = struct{}{}
		if position.MaxSelections < 1 {
			problems = append(problems, "position "+position.Name+" must allow at least one selection")
		}
		switch position.Scope {
		case ScopeGlobal:
		case ScopeInstitute:
			hasScoped = true
		default:
			problems = append(problems, "position "+position.Name+" has unknown scope "+string(position.Scope))
		}
	}
	if hasScoped && len(d.Institutes) == 0 {
		problems = append(problems, "scoped positions require at least one institute")
	}
	institutes := make(map[string]struct{}, len(d.Institutes))
	for _, institute := range d.Institutes {
		if strings.TrimSpace(institute) == "" || strings.Contains(institute, "-") {
			problems = append(problems, "institute code "+institute+" is invalid")
		}
		if _, dup := institutes[institute]; dup {
			problems = append(problems, "duplicate institute "+institute)
		}
		institutes[institute] = struct{}{}
	}
	return append(problems, d.storageCollisions()...)
}

// storageCollisions reports distinct keys that persist under one selection
// key, e.g. a global "IAS-Governor" beside a Governor scoped to IAS.
func (d BallotDefinition) storageCollisions() []string {
	var problems []string
	owners := make(map[string]PositionKey)
	for _, key := range d.AllKeys() {
		stored := key.StorageKey()
		if owner, taken := owners[stored]; taken && owner != key {
			problems = append(problems, "positions "+owner.String()+" and "+key.String()+" share storage key "+stored)
			continue
		}
		owners[stored] = key
	}
	return problems
}
