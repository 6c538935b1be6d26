package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()
	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	err := FoldErrors([]error{fmt.Errorf("close uart"), nil, fmt.Errorf("mqtt disconnect")})
	assert.EqualError(t, err, "close uart\nmqtt disconnect")
	single := fmt.Errorf("only")
	assert.Equal(t, single, FoldErrors([]error{nil, single}))
}

func TestMustHex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{0x05, 0, 0, 0, 0, 0}, MustHex("05000000 0000"))
	assert.Panics(t, func() { MustHex("zz") })
}

func TestIntSecondDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5*time.Second, IntSecondDefault(0, 5*time.Second))
	assert.Equal(t, 2*time.Second, IntSecondDefault(2, 5*time.Second))
}
