package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	kv := []any{"review_id", "r-1", "count", 3, "dangling"}
	assert.Equal(t, "r-1", ExtractString(kv, "review_id"))
	assert.Empty(t, ExtractString(kv, "count"))
	assert.Empty(t, ExtractString(kv, "dangling"))
}

func TestToMap(t *testing.T) {
	kv := []any{"subject_id", "cand-1", "severity", "high", "count", 3, 42, "skipped", "dangling"}
	assert.Equal(t, map[string]string{"severity": "high", "count": "3"}, ToMap(kv, "subject_id"))
}
