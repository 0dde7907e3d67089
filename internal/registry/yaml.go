package registry

import (
	"os"

	"gopkg.in/yaml.v3"

	snaperrors "snaptest/internal/errors"
)

// loadYAML reads a YAML mapping of test name to command. The document is
// walked as nodes so that source order and duplicate keys survive decoding.
func (b *builder) loadYAML(src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return snaperrors.Wrap(snaperrors.EConfig, "cannot open definition source "+src, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return snaperrors.WrapWithDetails(snaperrors.EParse, src+": invalid YAML", err,
			map[string]string{"source": src})
	}
	if doc.Kind == 0 {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return parseError(src, doc.Line, "expected a single YAML document", nil)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return parseError(src, root.Line, "expected a mapping of test name to command", nil)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return parseError(src, key.Line, "test name must be a scalar", nil)
		}
		if value.Kind != yaml.ScalarNode {
			return parseError(src, value.Line, "command for "+quote(key.Value)+" must be a string", nil)
		}
		if err := ValidateName(key.Value); err != nil {
			return parseError(src, key.Line, "invalid test name", err)
		}
		b.add(TestCase{Name: key.Value, Command: value.Value, Source: src, Line: key.Line})
	}
	return nil
}
