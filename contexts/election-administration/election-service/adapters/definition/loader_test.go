package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

func TestDefaultDefinitionIsValid(t *testing.T) {
	definition, err := Default()
	if err != nil {
		t.Fatalf("default definition: %v", err)
	}
	position, ok := definition.Lookup(entities.GlobalPosition("Multimedia Officers"))
	if !ok || position.MaxSelections != 3 {
		t.Fatalf("expected multimedia officers with three selections, got %+v %v", position, ok)
	}
	if _, ok := definition.Lookup(entities.ScopedPosition("IAS", "Governor")); !ok {
		t.Fatalf("expected scoped governor for IAS")
	}
	if _, ok := definition.Lookup(entities.GlobalPosition("Governor")); ok {
		t.Fatalf("governor must not resolve as a global position")
	}
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{
			name: "unknown field",
			raw:  "positions:\n  - name: President\n    max_selection: 1\n    scope: global\n",
		},
		{
			name: "zero cardinality",
			raw:  "positions:\n  - name: President\n    max_selections: 0\n    scope: global\n",
		},
		{
			name: "scoped without institutes",
			raw:  "positions:\n  - name: Governor\n    max_selections: 1\n    scope: institute\n",
		},
		{
			name: "duplicate position",
			raw:  "positions:\n  - name: President\n    max_selections: 1\n    scope: global\n  - name: President\n    max_selections: 1\n    scope: global\n",
		},
		{
			name: "unknown scope",
			raw:  "positions:\n  - name: President\n    max_selections: 1\n    scope: campus\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.raw)); !errors.Is(err, domainerrors.ErrInvalidDefinition) {
				t.Fatalf("expected invalid definition, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	raw := "institutes: [IAS]\npositions:\n  - name: President\n    max_selections: 1\n    scope: Global\n  - name: Governor\n    max_selections: 1\n    scope: institute\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	definition, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	keys := definition.AllKeys()
	if len(keys) != 2 || keys[0] != entities.GlobalPosition("President") || keys[1] != entities.ScopedPosition("IAS", "Governor") {
		t.Fatalf("unexpected keys %v", keys)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
