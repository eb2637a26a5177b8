package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
)

func TestEngine_BindOnce(t *testing.T) {
	e := New()
	owner := &struct{ name string }{"a"}

	require.NoError(t, e.Bind(owner))
	assert.Same(t, owner, e.Owner())

	err := e.Bind(&struct{ name string }{"b"})
	assert.ErrorIs(t, err, ErrAlreadyBound)

	err = e.Bind(owner)
	assert.ErrorIs(t, err, ErrAlreadyBound, "rebinding the same owner is also rejected")
}

func TestEngine_BindNil(t *testing.T) {
	assert.Error(t, New().Bind(nil))
}

func TestEngine_WrapDeepConverts(t *testing.T) {
	e := New()
	src := ir.IRObject{
		"count": ir.IRInt(1),
		"cart":  ir.IRObject{"items": ir.IRArray{ir.IRString("a")}},
	}
	root := e.Wrap(src)

	require.NotNil(t, root.Object("cart"))
	assert.Equal(t, int64(1), root.Int("count"))
	assert.Equal(t, ir.IRArray{ir.IRString("a")}, root.Object("cart").Array("items"))

	// Wrap clones its input.
	src["count"] = ir.IRInt(5)
	assert.Equal(t, int64(1), root.Int("count"))
}

func TestEngine_VersionBumpsOnWrite(t *testing.T) {
	e := New()
	root := e.Wrap(ir.IRObject{})
	before := e.Version()

	e.Set(root, "a", 1)
	assert.Equal(t, before+1, e.Version())

	e.Delete(root, "missing")
	assert.Equal(t, before+1, e.Version(), "deleting an absent key is not a write")

	e.Delete(root, "a")
	assert.Equal(t, before+2, e.Version())

	e.Trigger()
	assert.Equal(t, before+3, e.Version())
}

func TestEngine_NextTickRunsOnFlush(t *testing.T) {
	e := New()
	var ran []int
	e.NextTick(func() { ran = append(ran, 1) })
	e.NextTick(func() { ran = append(ran, 2) })

	assert.Empty(t, ran)
	e.Flush()
	assert.Equal(t, []int{1, 2}, ran)

	e.Flush()
	assert.Equal(t, []int{1, 2}, ran, "ticks run once")
}

func TestEngine_TickQueuedDuringFlushRuns(t *testing.T) {
	e := New()
	var ran []string
	e.NextTick(func() {
		ran = append(ran, "outer")
		e.NextTick(func() { ran = append(ran, "inner") })
	})

	e.Flush()
	assert.Equal(t, []string{"outer", "inner"}, ran)
}

func TestEngine_ConcurrentWrites(t *testing.T) {
	e := New()
	root := e.Wrap(ir.IRObject{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root.Set(string(rune('a'+i)), i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, root.Len())
	assert.Equal(t, int64(20), e.Version())
}
