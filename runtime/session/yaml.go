package session

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/radkum/ps-parser/core/values"
)

// preseedDoc is the on-disk shape for variable preseeding: scope sections
// mapping variable names to scalar values.
//
//	global:
//	  name: John Doe
//	local:
//	  local_var: local_value
//	env:
//	  PROGRAMFILES: 'C:\Program Files'
type preseedDoc map[string]map[string]interface{}

// LoadVariablesYAML preseeds session variables from a YAML document with
// global/script/local/env sections. Unknown sections are rejected.
func (s *Session) LoadVariablesYAML(data []byte) error {
	var doc preseedDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing variables document: %w", err)
	}
	for section, vars := range doc {
		for name, raw := range vars {
			v := yamlScalar(raw)
			switch section {
			case "global", "script", "local":
				if err := s.Set(section, name, v); err != nil {
					return err
				}
			case "env":
				s.SetEnv(name, v)
			default:
				return fmt.Errorf("unknown variables section %q", section)
			}
		}
	}
	return nil
}

func yamlScalar(raw interface{}) values.Val {
	switch x := raw.(type) {
	case nil:
		return values.Null{}
	case bool:
		return values.Bool(x)
	case int:
		return values.Int(int64(x))
	case int64:
		return values.Int(x)
	case float64:
		return values.Double(x)
	case string:
		return values.Str(x)
	case []interface{}:
		arr := &values.Array{}
		for _, it := range x {
			arr.Items = append(arr.Items, yamlScalar(it))
		}
		return arr
	case map[string]interface{}:
		ht := values.NewHashTable()
		for k, it := range x {
			ht.Set(k, yamlScalar(it))
		}
		return ht
	default:
		return values.Str(fmt.Sprintf("%v", raw))
	}
}
