package export

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

func renderJSON(d *document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func renderYAML(d *document) ([]byte, error) {
	return yaml.Marshal(d)
}
