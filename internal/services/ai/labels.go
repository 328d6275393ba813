package ai

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Labels maps class indices to names.
type Labels []string

// Name returns the label for id, or "class_<id>" when unknown.
func (l Labels) Name(id int) string {
	if id >= 0 && id < len(l) && l[id] != "" {
		return l[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Contains reports whether name is one of the labels.
func (l Labels) Contains(name string) bool {
	for _, label := range l {
		if label == name {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts both the list form (names: [fire, smoke]) and the
// index map form (names: {0: fire, 1: smoke}) of a training data file.
func (l *Labels) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*l = names
		return nil
	case yaml.MappingNode:
		var byID map[int]string
		if err := value.Decode(&byID); err != nil {
			return err
		}
		ids := make([]int, 0, len(byID))
		for id := range byID {
			if id < 0 {
				return fmt.Errorf("negative class index %d", id)
			}
			ids = append(ids, id)
		}
		sort.Ints(ids)
		names := make([]string, 0, len(ids))
		if len(ids) > 0 {
			names = make([]string, ids[len(ids)-1]+1)
		}
		for _, id := range ids {
			names[id] = byID[id]
		}
		*l = names
		return nil
	}
	return fmt.Errorf("names must be a list or a map, got line %d", value.Line)
}

type dataFile struct {
	NC    int    `yaml:"nc"`
	Names Labels `yaml:"names"`
}

// ParseLabels reads the class names from a YOLO data.yaml document.
func ParseLabels(data []byte) (Labels, error) {
	var df dataFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	if len(df.Names) == 0 {
		return nil, fmt.Errorf("no class names found")
	}
	if df.NC > 0 && df.NC != len(df.Names) {
		return nil, fmt.Errorf("nc is %d but %d names are listed", df.NC, len(df.Names))
	}
	return df.Names, nil
}

// LoadLabels reads class names from a data.yaml file.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return ParseLabels(data)
}
