package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j****@example.com", MaskEmail("john.doe@example.com"))
	assert.Equal(t, "****", MaskEmail("not-an-address"))
	assert.Equal(t, "", MaskEmail("  "))
}

func TestMaskJSONOnlyTouchesSensitiveKeys(t *testing.T) {
	out := MaskJSON(map[string]any{
		"recipient":     "ana@corp.io",
		"work_order_id": "42",
		"nested":        map[string]any{"email": "bob@corp.io", "kind": "employee"},
	})
	assert.Equal(t, "a****@corp.io", out["recipient"])
	assert.Equal(t, "42", out["work_order_id"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "b****@corp.io", nested["email"])
	assert.Equal(t, "employee", nested["kind"])
}
