package emission

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var requiredDefaultKeys = []string{
	"co_max", "hc_max", "co2_min", "o2_max", "lambda_min", "lambda_max", "opacity_max",
}

// defaultsFields has the Defaults layout without its decode methods.
type defaultsFields Defaults

// checkDefaultKeys rejects unknown keys and reports every required key that
// is absent or null.
func checkDefaultKeys(present map[string]bool) error {
	for key := range present {
		if key == "o2_min" {
			continue
		}
		if !isRequiredDefault(key) {
			return fmt.Errorf("defaults: unknown limit %q", key)
		}
	}
	var missing []string
	for _, key := range requiredDefaultKeys {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("defaults: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func isRequiredDefault(key string) bool {
	for _, k := range requiredDefaultKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (d *Defaults) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	present := make(map[string]bool, len(raw))
	for key, v := range raw {
		if string(v) == "null" && (isRequiredDefault(key) || key == "o2_min") {
			continue
		}
		present[key] = true
	}
	if err := checkDefaultKeys(present); err != nil {
		return err
	}
	var out defaultsFields
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*d = Defaults(out)
	return nil
}

func (d *Defaults) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("defaults must be a mapping")
	}
	present := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		if value.Tag == "!!null" && (isRequiredDefault(key) || key == "o2_min") {
			continue
		}
		present[key] = true
	}
	if err := checkDefaultKeys(present); err != nil {
		return err
	}
	var out defaultsFields
	if err := node.Decode(&out); err != nil {
		return err
	}
	*d = Defaults(out)
	return nil
}
