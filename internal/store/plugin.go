package store

import "fmt"

// Plugin extends a store. Each plugin name is applied at most once per
// store, in installation order.
type Plugin interface {
	Name() string
	Apply(s *Store) error
}

type pluginFunc struct {
	name string
	fn   func(*Store) error
}

func (p pluginFunc) Name() string         { return p.name }
func (p pluginFunc) Apply(s *Store) error { return p.fn(s) }

// PluginFunc adapts fn into a Plugin named name.
func PluginFunc(name string, fn func(*Store) error) Plugin {
	return pluginFunc{name: name, fn: fn}
}

// Use applies p unless a plugin with the same name is already installed.
// A plugin whose Apply fails is not recorded and may be retried. Concurrent
// calls for one name wait for the Apply in flight instead of repeating it.
func (s *Store) Use(p Plugin) error {
	name := p.Name()

	for {
		s.pluginMu.Lock()
		if _, ok := s.installed[name]; ok {
			s.pluginMu.Unlock()
			s.logger.Debug("plugin already installed", "plugin", name)
			return nil
		}
		wait, busy := s.installing[name]
		if !busy {
			break
		}
		s.pluginMu.Unlock()
		<-wait
	}
	done := make(chan struct{})
	s.installing[name] = done
	s.pluginMu.Unlock()

	err := p.Apply(s)

	s.pluginMu.Lock()
	delete(s.installing, name)
	if err == nil {
		s.installed[name] = struct{}{}
		s.pluginOrder = append(s.pluginOrder, name)
	}
	s.pluginMu.Unlock()
	close(done)

	if err != nil {
		return fmt.Errorf("plugin %q: %w", name, err)
	}
	return nil
}

// Plugins returns installed plugin names in installation order.
func (s *Store) Plugins() []string {
	s.pluginMu.Lock()
	defer s.pluginMu.Unlock()
	return append([]string(nil), s.pluginOrder...)
}
