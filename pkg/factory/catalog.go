package factory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
)

var reservedNames = map[string]bool{
	"bool": true, "int": true, "double": true, "string": true,
	"true": true, "false": true, "nullptr": true,
}

// Catalog holds one Registry per interface. It is filled at startup by
// Install calls and only read afterwards.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory

	installMu sync.Mutex
	installed map[string]bool
}

// NewCatalog creates a new empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
		installed: make(map[string]bool),
	}
}

// Add registers f for its interface. Each interface has one registry.
func (c *Catalog) Add(f Factory) error {
	iface := f.Interface()
	if !isIdent(iface) || reservedNames[iface] {
		return fmt.Errorf("cannot register interface %q: reserved or not an identifier", iface)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[iface]; ok {
		return diagnostics.Errorf(diagnostics.EDupRegistration, nil, "interface '%s' is already registered", iface)
	}
	c.factories[iface] = f
	return nil
}

// Lookup returns the registry for iface, or nil.
func (c *Catalog) Lookup(iface string) Factory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factories[iface]
}

// Resolve returns the registries that have a type named typeName,
// sorted by interface.
func (c *Catalog) Resolve(typeName string) []Factory {
	var out []Factory
	for _, f := range c.Factories() {
		if f.Has(typeName) {
			out = append(out, f)
		}
	}
	return out
}

// Factories returns every registry, sorted by interface.
func (c *Catalog) Factories() []Factory {
	c.mu.RLock()
	out := make([]Factory, 0, len(c.factories))
	for _, f := range c.factories {
		out = append(out, f)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Interface() < out[j].Interface() })
	return out
}

// Interfaces returns the registered interface names, sorted.
func (c *Catalog) Interfaces() []string {
	fs := c.Factories()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Interface()
	}
	return names
}

// HasInterface reports whether iface has a registry.
func (c *Catalog) HasInterface(iface string) bool {
	return c.Lookup(iface) != nil
}

// Accepts reports whether instance implements iface.
func (c *Catalog) Accepts(iface string, instance any) bool {
	f := c.Lookup(iface)
	return f != nil && f.Accepts(instance)
}

// Install runs fn against c once per module name. Installing a module a
// second time is a no-op; fn's registrations still fail on names another
// module already registered.
func (c *Catalog) Install(module string, fn func(*Catalog) error) error {
	c.installMu.Lock()
	defer c.installMu.Unlock()
	if c.installed[module] {
		return nil
	}
	if err := fn(c); err != nil {
		return fmt.Errorf("install %s: %w", module, err)
	}
	c.installed[module] = true
	return nil
}

// Installed reports whether module has been installed.
func (c *Catalog) Installed(module string) bool {
	c.installMu.Lock()
	defer c.installMu.Unlock()
	return c.installed[module]
}

// RegistryFor returns the catalog's registry for tag, adding a new one
// when the interface has none yet.
func RegistryFor[T Constructible](c *Catalog, tag Tag[T]) (*Registry[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.factories[tag.name]; ok {
		r, ok := f.(*Registry[T])
		if !ok {
			return nil, diagnostics.Errorf(diagnostics.EDupRegistration, nil,
				"interface '%s' is already registered with a different Go type", tag.name)
		}
		return r, nil
	}
	if !isIdent(tag.name) || reservedNames[tag.name] {
		return nil, fmt.Errorf("cannot register interface %q: reserved or not an identifier", tag.name)
	}
	r := NewRegistry(tag)
	c.factories[tag.name] = r
	return r, nil
}

// Describe returns the members type typeName of iface declares. The
// throwaway instance it inspects is never initialized.
func (c *Catalog) Describe(iface, typeName string) ([]FieldSpec, error) {
	f := c.Lookup(iface)
	if f == nil {
		return nil, unknownInterface(iface, c.Interfaces())
	}
	obj, err := f.New(typeName)
	if err != nil {
		return nil, err
	}
	in := newInitializers(typeName)
	obj.RegisterInitializers(in)
	if err := in.err(); err != nil {
		return nil, err
	}
	return in.Specs(), nil
}

// Construct implements evaluator.Catalog with the default build options.
func (c *Catalog) Construct(ce *ast.ConstructExpr, want evaluator.Type, env *evaluator.Env, eval evaluator.EvalFunc) (evaluator.Value, error) {
	return c.Builder(BuildOptions{}).Construct(ce, want, env, eval)
}

// Builder returns a view of c that constructs with opts.
func (c *Catalog) Builder(opts BuildOptions) *Builder {
	return &Builder{Catalog: c, Options: opts}
}

// Builder constructs objects from a Catalog's registries.
type Builder struct {
	*Catalog
	Options BuildOptions
}

// Construct resolves ce.TypeName under want's interface, or under every
// interface when want is AnyType, creates the instance and builds it.
func (b *Builder) Construct(ce *ast.ConstructExpr, want evaluator.Type, env *evaluator.Env, eval evaluator.EvalFunc) (evaluator.Value, error) {
	span := ce.Span
	f, err := b.resolve(ce.TypeName, want)
	if err != nil {
		return nil, asDiag(err, &span)
	}
	obj, err := f.New(ce.TypeName)
	if err != nil {
		return nil, asDiag(err, &span)
	}
	opts := b.Options
	if opts.Logger != nil {
		opts.Logger = opts.Logger.WithField("interface", f.Interface())
	}
	if err := Build(obj, ce.TypeName, ce, env, eval, opts); err != nil {
		return nil, err
	}
	return evaluator.Object{
		Instance:  obj,
		TypeName:  ce.TypeName,
		Interface: f.Interface(),
		Raw:       ce.Raw,
	}, nil
}

func (b *Builder) resolve(typeName string, want evaluator.Type) (Factory, error) {
	if want.Kind == evaluator.KindObject {
		f := b.Lookup(want.Interface)
		if f == nil {
			return nil, unknownInterface(want.Interface, b.Interfaces())
		}
		if !f.Has(typeName) {
			return nil, diagnostics.Errorf(diagnostics.EUnknownType, nil,
				"unknown %s type '%s'", want.Interface, typeName).
				WithHint(fmt.Sprintf("registered %s types: %s", want.Interface, listOrNone(f.Names())))
		}
		return f, nil
	}

	matches := b.Resolve(typeName)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		var all []string
		for _, f := range b.Factories() {
			all = append(all, f.Names()...)
		}
		sort.Strings(all)
		return nil, diagnostics.Errorf(diagnostics.EUnknownType, nil, "unknown type '%s'", typeName).
			WithHint("registered types: " + listOrNone(all))
	}
	ifaces := make([]string, len(matches))
	for i, f := range matches {
		ifaces[i] = f.Interface()
	}
	return nil, diagnostics.Errorf(diagnostics.EAmbiguousType, nil,
		"type '%s' is registered under several interfaces: %s", typeName, strings.Join(ifaces, ", ")).
		WithHint(fmt.Sprintf("declare the interface, e.g. %s x = %s(...);", ifaces[0], typeName))
}

func unknownInterface(iface string, known []string) error {
	return diagnostics.Errorf(diagnostics.EUnknownInterface, nil, "unknown interface '%s'", iface).
		WithHint("registered interfaces: " + listOrNone(known))
}
