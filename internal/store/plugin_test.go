package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUse_AppliesOncePerName(t *testing.T) {
	calls := 0
	p := PluginFunc("counter", func(*Store) error {
		calls++
		return nil
	})
	s := newTestStore(t, counterDef(), WithPlugins(p, p))

	require.NoError(t, s.Use(p))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"counter"}, s.Plugins())
}

func TestUse_InstallationOrder(t *testing.T) {
	var order []string
	mk := func(name string) Plugin {
		return PluginFunc(name, func(*Store) error {
			order = append(order, name)
			return nil
		})
	}
	hook := &recordingHook{}
	s := newTestStore(t, counterDef(), WithPlugins(mk("b"), mk("a")), WithDevtools(hook))

	assert.Equal(t, []string{"b", "a"}, order)
	assert.Equal(t, []string{"b", "a", devtoolsPluginName}, s.Plugins())
	assert.True(t, hook.inited)
}

func TestUse_ConcurrentSameNameAppliesOnce(t *testing.T) {
	s := newTestStore(t, counterDef())
	var calls atomic.Int32
	gate := make(chan struct{})
	p := PluginFunc("slow", func(*Store) error {
		calls.Add(1)
		<-gate
		return nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Use(p)
		}()
	}
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"slow"}, s.Plugins())
}

func TestUse_FailingPluginNotRecorded(t *testing.T) {
	s := newTestStore(t, counterDef())
	boom := errors.New("boom")
	attempts := 0
	p := PluginFunc("flaky", func(*Store) error {
		attempts++
		if attempts == 1 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, s.Use(p), boom)
	require.NoError(t, s.Use(p))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []string{"flaky"}, s.Plugins())
}

func TestNew_PluginErrorStopsConstruction(t *testing.T) {
	_, err := New(counterDef(), WithLogger(discardLogger()), WithPlugins(PluginFunc("bad", func(*Store) error {
		return errors.New("nope")
	})))
	assert.Error(t, err)
}
