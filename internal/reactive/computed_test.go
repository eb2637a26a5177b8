package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/statetree/internal/ir"
)

func TestComputed_MemoizesUntilWrite(t *testing.T) {
	e := New()
	root := e.Wrap(ir.IRObject{"n": ir.IRInt(2)})

	evals := 0
	c := e.Computed(func() any {
		evals++
		return root.Int("n") * 10
	})

	assert.Equal(t, int64(20), c.Get())
	assert.Equal(t, int64(20), c.Get())
	assert.Equal(t, 1, evals)

	root.SetInt("n", 3)
	assert.Equal(t, int64(30), c.Get())
	assert.Equal(t, 2, evals)
}

func TestComputed_ReadsOtherComputed(t *testing.T) {
	e := New()
	root := e.Wrap(ir.IRObject{"n": ir.IRInt(1)})

	base := e.Computed(func() any { return root.Int("n") + 1 })
	derived := e.Computed(func() any { return base.Get().(int64) * 2 })

	assert.Equal(t, int64(4), derived.Get())
	root.SetInt("n", 4)
	assert.Equal(t, int64(10), derived.Get())
}

func TestComputed_DestroyStopsCaching(t *testing.T) {
	e := New()
	evals := 0
	c := e.Computed(func() any {
		evals++
		return evals
	})

	c.Get()
	c.Destroy()
	assert.True(t, c.Destroyed())

	c.Get()
	c.Get()
	assert.Equal(t, 3, evals)
}
