package environment

import (
	"encoding/json"
	"fmt"
)

// ParseFile decodes an environments document. A document without a configuration
// section yields an empty File.
func ParseFile(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks that every environment carries an id.
func (f File) Validate() error {
	for i, env := range f.Configuration.Environments {
		if env.ID == "" {
			return fmt.Errorf("%w: entry %d", ErrMissingEnvironmentID, i)
		}
	}
	return nil
}
