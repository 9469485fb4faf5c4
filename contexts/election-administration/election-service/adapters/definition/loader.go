package definition

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDefinition []byte

type fileFormat struct {
	Institutes []string         `yaml:"institutes"`
	Positions  []positionFormat `yaml:"positions"`
}

type positionFormat struct {
	Name          string `yaml:"name"`
	MaxSelections int    `yaml:"max_selections"`
	Scope         string `yaml:"scope"`
}

// Default returns the embedded ballot layout.
func Default() (entities.BallotDefinition, error) {
	return Parse(defaultDefinition)
}

// Load reads a definition from path, or the embedded default when path is
// empty.
func Load(path string) (entities.BallotDefinition, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return entities.BallotDefinition{}, fmt.Errorf("read ballot definition %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML and rejects a structurally invalid definition. Unknown
// keys are refused so a typo never silently drops a position.
func Parse(raw []byte) (entities.BallotDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var file fileFormat
	if err := decoder.Decode(&file); err != nil {
		return entities.BallotDefinition{}, domainerrors.Wrap(domainerrors.ErrInvalidDefinition, err)
	}

	definition := entities.BallotDefinition{
		Positions:  make([]entities.PositionDefinition, 0, len(file.Positions)),
		Institutes: make([]string, 0, len(file.Institutes)),
	}
	for _, institute := range file.Institutes {
		if institute = strings.TrimSpace(institute); institute != "" {
			definition.Institutes = append(definition.Institutes, institute)
		}
	}
	for _, position := range file.Positions {
		definition.Positions = append(definition.Positions, entities.PositionDefinition{
			Name:          strings.TrimSpace(position.Name),
			MaxSelections: position.MaxSelections,
			Scope:         entities.PositionScope(strings.ToLower(strings.TrimSpace(position.Scope))),
		})
	}

	if problems := definition.Problems(); len(problems) > 0 {
		return entities.BallotDefinition{}, domainerrors.WithDetails(domainerrors.ErrInvalidDefinition, map[string]any{
			"problems": problems,
		})
	}
	return definition, nil
}
