package modkit

// Built is a plain struct with the fields modules care about
type Built struct {
	Name   string
	Prefix string
	Ports  any
}

// Build applies Option funcs to an internal buildCfg and returns a plain
// struct. Modules prepend their defaults, so caller options win
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	return Built{
		Name:   c.name,
		Prefix: c.prefix,
		Ports:  c.ports,
	}
}
