package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const DatasetDescriptorFile = "data.yaml"

// DatasetDescriptor is the YOLO dataset file passed to the trainer.
type DatasetDescriptor struct {
	Path  string     `yaml:"path,omitempty"`
	Train string     `yaml:"train"`
	Val   string     `yaml:"val"`
	Test  string     `yaml:"test,omitempty"`
	Nc    int        `yaml:"nc"`
	Names ClassNames `yaml:"names"`
}

// ClassNames accepts both the list form and the index map form of "names".
type ClassNames []string

func (c *ClassNames) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*c = list
		return nil
	}

	var indexed map[int]string
	if err := unmarshal(&indexed); err != nil {
		return fmt.Errorf("names must be a list or an index map: %w", err)
	}

	names := make([]string, len(indexed))
	for idx, name := range indexed {
		if idx < 0 || idx >= len(indexed) {
			return fmt.Errorf("class index %d out of range", idx)
		}
		names[idx] = name
	}
	*c = names
	return nil
}

func LoadDatasetDescriptor(path string) (DatasetDescriptor, error) {
	var desc DatasetDescriptor

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return desc, fmt.Errorf("%w: %s", ErrMissingDatasetDescriptor, path)
		}
		return desc, fmt.Errorf("error reading dataset descriptor %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &desc); err != nil {
		return desc, fmt.Errorf("%w: %s: %w", ErrInvalidDatasetDescriptor, path, err)
	}

	if err := desc.Validate(); err != nil {
		return desc, fmt.Errorf("%w: %s: %w", ErrInvalidDatasetDescriptor, path, err)
	}

	return desc, nil
}

func (d DatasetDescriptor) Validate() error {
	if d.Train == "" {
		return fmt.Errorf("missing train split")
	}
	if d.Val == "" {
		return fmt.Errorf("missing val split")
	}
	if len(d.Names) == 0 {
		return fmt.Errorf("no class names")
	}
	if d.Nc != 0 && d.Nc != len(d.Names) {
		return fmt.Errorf("nc is %d but %d class names are listed", d.Nc, len(d.Names))
	}
	return nil
}
