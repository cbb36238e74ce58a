package cache

import (
	"fmt"
	"strings"

	"realtycrm/internal/model"

	"github.com/google/uuid"
)

// ListKey names the snapshot of one viewer's list page. Non-empty filters are appended so
// differently filtered pages never share a snapshot; the unfiltered page has the bare key.
func ListKey(module model.Module, viewer uuid.UUID, filters ...string) string {
	parts := []string{"snapshot", string(module), viewer.String()}
	for _, f := range filters {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ":")
}

// ModuleKey names a snapshot shared by every viewer.
func ModuleKey(module model.Module) string {
	return fmt.Sprintf("snapshot:%s", module)
}
