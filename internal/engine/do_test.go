package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq(t *testing.T) {
	t.Parallel()
	calls := ""
	step := func(name string, err error) Doer {
		return Func{Name: name, F: func(context.Context) error { calls += name; return err }}
	}
	seq := NewSeq("test").Append(step("a", nil)).Append(step("b", nil))
	require.NoError(t, seq.Validate())
	require.NoError(t, seq.Do(context.Background()))
	assert.Equal(t, "ab", calls)
	assert.Equal(t, 2, seq.Len())

	calls = ""
	seq = NewSeq("fail").Append(step("a", nil)).Append(step("b", fmt.Errorf("broken"))).Append(step("c", nil))
	err := seq.Do(context.Background())
	require.Error(t, err)
	assert.Equal(t, "`b`: broken", err.Error())
	assert.Equal(t, "ab", calls)
}

func TestSeqValidate(t *testing.T) {
	t.Parallel()
	seq := NewSeq("v").Append(Nothing{"ok"}).Append(Fail{E: fmt.Errorf("bad arg")})
	err := seq.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq=v node=bad arg validate")
}

func TestRepeatN(t *testing.T) {
	t.Parallel()
	n := 0
	d := RepeatN{N: 5, D: Func{Name: "inc", F: func(context.Context) error { n++; return nil }}}
	require.NoError(t, d.Do(context.Background()))
	assert.Equal(t, 5, n)

	n = 0
	d.D = Func{Name: "inc", F: func(context.Context) error {
		n++
		if n == 3 {
			return fmt.Errorf("third")
		}
		return nil
	}}
	assert.EqualError(t, d.Do(context.Background()), "third")
	assert.Equal(t, 3, n)
}

func TestSleepCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep{time.Hour}.Do(ctx)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.True(t, time.Since(start) < time.Second)

	n := 0
	err = RepeatN{N: 3, D: Func{F: func(context.Context) error { n++; return nil }}}.Do(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, n)
}
