package output

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Lines())

	for i := 1; i <= 2; i++ {
		_, _ = fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 1", "line 2"}, r.Lines())

	for i := 3; i <= 5; i++ {
		_, _ = fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.Lines())
}
