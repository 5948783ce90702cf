package miqaats

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

// maxImportItems bounds a single import document.
const maxImportItems = 2000

// importDocument accepts either a bare list or {miqaats: [...]}. JSON is
// valid YAML, so one decoder serves both formats.
type importDocument struct {
	Miqaats []Miqaat `yaml:"miqaats"`
}

// ParseImport decodes a YAML or JSON import document.
func ParseImport(data []byte) ([]Miqaat, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, apperror.NewValidation("import document is empty")
	}

	var items []Miqaat
	if data[0] == '[' || data[0] == '-' {
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, apperror.NewBadRequest(fmt.Sprintf("cannot parse import document: %v", err))
		}
	} else {
		var doc importDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, apperror.NewBadRequest(fmt.Sprintf("cannot parse import document: %v", err))
		}
		items = doc.Miqaats
	}

	if len(items) == 0 {
		return nil, apperror.NewValidation("import document contains no miqaats")
	}
	if len(items) > maxImportItems {
		return nil, apperror.NewValidation(fmt.Sprintf("import is limited to %d miqaats", maxImportItems))
	}
	return items, nil
}

func (s *service) Import(ctx context.Context, actor string, data []byte) ([]Miqaat, error) {
	items, err := ParseImport(data)
	if err != nil {
		return nil, err
	}
	return s.CreateMany(ctx, actor, "imported", items)
}

func newUUID() string {
	return uuid.NewString()
}
