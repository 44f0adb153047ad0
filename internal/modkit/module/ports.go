package module

import "reflect"

// PortSet is a marker for module defined port sets. Modules define their own
// concrete struct types and return them from Ports
type PortSet = any

// PortsOf pulls an interface T out of a module's Ports() bundle without going
// through the registry. The bundle may implement T directly, or carry it in an
// exported struct field (pointer-to-struct bundles are dereferenced first).
// Returns ok=false when nothing matches
func PortsOf[T any](m Module) (t T, ok bool) {
	p := m.Ports()
	if p == nil {
		return t, false
	}
	if v, ok2 := p.(T); ok2 {
		return v, true
	}

	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return t, false
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok2 := f.Interface().(T); ok2 {
			return v, true
		}
	}
	return t, false
}

// MustPortsOf is a convenience that panics with a friendly message
func MustPortsOf[T any](m Module) T {
	if v, ok := PortsOf[T](m); ok {
		return v
	}
	panic("module: requested port not found on module " + m.Name())
}
