package factory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/factory"
	"github.com/NoelToby/refr/pkg/parser"
)

// --- test types ---

type Shape interface {
	factory.Constructible
	Area() float64
}

type Tile interface {
	factory.Constructible
	Grout() string
}

var (
	shapeTag = factory.NewTag[Shape]("Shape")
	tileTag  = factory.NewTag[Tile]("Tile")
)

type square struct {
	side    float64
	label   string
	visible bool
	id      int64
	tags    []string
	counts  []int
	raw     string
	inited  bool
}

func (s *square) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "side", &s.side, factory.Required)
	factory.Add(in, "label", &s.label)
	factory.Add(in, "visible", &s.visible)
	factory.Add(in, "id", &s.id)
	factory.AddList(in, "tags", &s.tags)
	factory.AddList(in, "counts", &s.counts)
}

func (s *square) Init(raw string, env *evaluator.Env) error {
	s.raw = raw
	s.inited = true
	return nil
}

func (s *square) Area() float64 { return s.side * s.side }

type group struct {
	factory.NoInit
	primary Shape
	members []Shape
}

func (g *group) RegisterInitializers(in *factory.Initializers) {
	factory.AddObject(in, "primary", &g.primary, shapeTag)
	factory.AddObjectList(in, "members", &g.members, shapeTag)
}

func (g *group) Area() float64 {
	var total float64
	for _, m := range g.members {
		if m != nil {
			total += m.Area()
		}
	}
	return total
}

// scaled reads its bind-only factor from the construction scope.
type scaled struct {
	base Shape
	area float64
}

func (s *scaled) RegisterInitializers(in *factory.Initializers) {
	factory.AddObject(in, "base", &s.base, shapeTag, factory.Required)
	factory.BindOnly(in, "factor", evaluator.DoubleType, factory.Required)
}

func (s *scaled) Init(raw string, env *evaluator.Env) error {
	f, err := env.LookupDouble("factor")
	if err != nil {
		return err
	}
	s.area = s.base.Area() * f
	return nil
}

func (s *scaled) Area() float64 { return s.area }

type broken struct {
	fail   bool
	reject bool
}

func (b *broken) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "fail", &b.fail)
	factory.Add(in, "reject", &b.reject)
}

func (b *broken) Init(string, *evaluator.Env) error {
	if b.fail {
		return errors.New("cannot initialize")
	}
	if b.reject {
		return diagnostics.Errorf(diagnostics.EType, nil, "rejected")
	}
	return nil
}

func (b *broken) Area() float64 { return 0 }

type twice struct{ factory.NoInit }

func (t *twice) RegisterInitializers(in *factory.Initializers) {
	var a, b int
	factory.Add(in, "a", &a)
	factory.Add(in, "a", &b)
}

func (t *twice) Area() float64 { return 0 }

type tile struct{ factory.NoInit }

func (t *tile) RegisterInitializers(in *factory.Initializers) {
	var side float64
	factory.Add(in, "side", &side)
}

func (t *tile) Grout() string { return "white" }

func installShapes(c *factory.Catalog) error {
	shapes, err := factory.RegistryFor(c, shapeTag)
	if err != nil {
		return err
	}
	for name, create := range map[string]func() Shape{
		"Square": func() Shape { return &square{} },
		"Group":  func() Shape { return &group{} },
		"Scaled": func() Shape { return &scaled{} },
		"Broken": func() Shape { return &broken{} },
		"Twice":  func() Shape { return &twice{} },
	} {
		if err := shapes.Register(name, create); err != nil {
			return err
		}
	}
	return nil
}

func installTiles(c *factory.Catalog) error {
	tiles, err := factory.RegistryFor(c, tileTag)
	if err != nil {
		return err
	}
	return tiles.Register("Square", func() Tile { return &tile{} })
}

// --- helpers ---

func newCatalog(t *testing.T) *factory.Catalog {
	t.Helper()
	c := factory.NewCatalog()
	require.NoError(t, c.Install("shapes", installShapes))
	return c
}

func evalWith(t *testing.T, cat evaluator.Catalog, src string) (*evaluator.ExecResult, error) {
	t.Helper()
	prog, diags := parser.Parse(src, "test.desc")
	if len(diags) > 0 {
		t.Fatalf("parse errors: %s", diagnostics.FormatDiagnostics(diags, true))
	}
	return evaluator.Execute(context.Background(), prog, evaluator.ExecOptions{Catalog: cat})
}

func instance[T any](t *testing.T, res *evaluator.ExecResult, name string) T {
	t.Helper()
	v, ok := res.Env.Get(name)
	require.True(t, ok, "%s is not bound", name)
	obj, ok := v.(evaluator.Object)
	require.True(t, ok, "%s is %T, not an object", name, v)
	inst, ok := obj.Instance.(T)
	require.True(t, ok, "%s holds %T", name, obj.Instance)
	return inst
}

// --- registry ---

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := factory.NewRegistry(shapeTag)
	require.NoError(t, r.Register("Square", func() Shape { return &square{} }))
	require.NoError(t, r.Register("Group", func() Shape { return &group{} }))

	assert.Equal(t, "Shape", r.Interface())
	assert.Equal(t, []string{"Group", "Square"}, r.Names())
	assert.True(t, r.Has("Square"))

	s, err := r.Create("Square")
	require.NoError(t, err)
	assert.IsType(t, &square{}, s)

	a, _ := r.Create("Square")
	b, _ := r.Create("Square")
	assert.NotSame(t, a, b, "each Create returns a fresh instance")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := factory.NewRegistry(shapeTag)
	require.NoError(t, r.Register("Square", func() Shape { return &square{} }))
	err := r.Register("Square", func() Shape { return &group{} })
	assert.Equal(t, diagnostics.EDupRegistration, diagnostics.Code(err))
}

func TestRegistryValidatesRegistrations(t *testing.T) {
	r := factory.NewRegistry(shapeTag)
	assert.Error(t, r.Register("", func() Shape { return &square{} }))
	assert.Error(t, r.Register("2d", func() Shape { return &square{} }))
	assert.Error(t, r.Register("nullptr", func() Shape { return &square{} }))
	assert.Error(t, r.Register("Square", nil))
	assert.Empty(t, r.Names())
}

func TestRegistryCreateUnknown(t *testing.T) {
	r := factory.NewRegistry(shapeTag)
	require.NoError(t, r.Register("Square", func() Shape { return &square{} }))

	_, err := r.Create("Circle")
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EUnknownType, d.Code)
	assert.Contains(t, d.Message, "Circle")
	assert.Contains(t, d.Hint, "Square")
}

func TestRegistryConcurrentRegistration(t *testing.T) {
	r := factory.NewRegistry(shapeTag)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("T%d", i), func() Shape { return &square{} })
			if r.Register("Shared", func() Shape { return &square{} }) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Len(t, r.Names(), 17)
}

// --- catalog ---

func TestCatalogAddAndLookup(t *testing.T) {
	c := factory.NewCatalog()
	require.NoError(t, c.Add(factory.NewRegistry(shapeTag)))
	require.NoError(t, c.Add(factory.NewRegistry(tileTag)))

	assert.Equal(t, []string{"Shape", "Tile"}, c.Interfaces())
	assert.True(t, c.HasInterface("Shape"))
	assert.Nil(t, c.Lookup("Animal"))

	err := c.Add(factory.NewRegistry(shapeTag))
	assert.Equal(t, diagnostics.EDupRegistration, diagnostics.Code(err))

	assert.Error(t, c.Add(factory.NewRegistry(factory.NewTag[Shape]("int"))))
}

func TestRegistryForSharesOneRegistry(t *testing.T) {
	c := factory.NewCatalog()
	a, err := factory.RegistryFor(c, shapeTag)
	require.NoError(t, err)
	b, err := factory.RegistryFor(c, shapeTag)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = factory.RegistryFor(c, factory.NewTag[Tile]("Shape"))
	assert.Equal(t, diagnostics.EDupRegistration, diagnostics.Code(err))
}

func TestInstallIsIdempotent(t *testing.T) {
	c := factory.NewCatalog()
	calls := 0
	install := func(c *factory.Catalog) error {
		calls++
		return installShapes(c)
	}
	require.NoError(t, c.Install("shapes", install))
	require.NoError(t, c.Install("shapes", install))
	assert.Equal(t, 1, calls)
	assert.True(t, c.Installed("shapes"))

	err := c.Install("more-shapes", installShapes)
	require.Error(t, err)
	assert.Equal(t, diagnostics.EDupRegistration, diagnostics.Code(err))
	assert.False(t, c.Installed("more-shapes"))
}

func TestCatalogAccepts(t *testing.T) {
	c := newCatalog(t)
	assert.True(t, c.Accepts("Shape", &square{}))
	assert.False(t, c.Accepts("Shape", &tile{}))
	assert.False(t, c.Accepts("Tile", &square{}))
}

func TestDescribeDoesNotInitialize(t *testing.T) {
	c := newCatalog(t)
	specs, err := c.Describe("Shape", "Square")
	require.NoError(t, err)

	require.Len(t, specs, 6)
	assert.Equal(t, "side", specs[0].Name)
	assert.Equal(t, evaluator.DoubleType, specs[0].Type)
	assert.True(t, specs[0].Required)
	assert.Equal(t, "tags", specs[4].Name)
	assert.Equal(t, "string[]", specs[4].Type.String())
	assert.False(t, specs[4].Required)

	specs, err = c.Describe("Shape", "Scaled")
	require.NoError(t, err)
	assert.Equal(t, factory.EnvOnly, specs[1].Writer.Kind)
	assert.Equal(t, "bind-only", specs[1].Writer.Kind.String())

	_, err = c.Describe("Animal", "Cow")
	assert.Equal(t, diagnostics.EUnknownInterface, diagnostics.Code(err))
	_, err = c.Describe("Shape", "Twice")
	assert.Equal(t, diagnostics.EDupField, diagnostics.Code(err))
}

// --- construction ---

func TestBuildWritesScalarsAndLists(t *testing.T) {
	res, err := evalWith(t, newCatalog(t),
		`s = Square(tags({"a", "b"}), side(2), label("box"), visible(true), id(7), counts({1, 2, 3}));`)
	require.NoError(t, err)

	s := instance[*square](t, res, "s")
	assert.Equal(t, 2.0, s.side, "int literal widens to double")
	assert.Equal(t, "box", s.label)
	assert.True(t, s.visible)
	assert.Equal(t, int64(7), s.id)
	assert.Equal(t, []string{"a", "b"}, s.tags)
	assert.Equal(t, []int{1, 2, 3}, s.counts)
	assert.True(t, s.inited)
	assert.Equal(t, `Square(tags({"a", "b"}), side(2), label("box"), visible(true), id(7), counts({1, 2, 3}))`, s.raw)
}

func TestBuildMemberOrderIsIrrelevant(t *testing.T) {
	res, err := evalWith(t, newCatalog(t), `a = Square(side(1), label("x")); b = Square(label("x"), side(1),);`)
	require.NoError(t, err)
	a := instance[*square](t, res, "a")
	b := instance[*square](t, res, "b")
	assert.Equal(t, a.side, b.side)
	assert.Equal(t, a.label, b.label)
}

func TestBuildMembersSeeOnlyEnclosingScope(t *testing.T) {
	res, err := evalWith(t, newCatalog(t),
		`id = 1; a = Square(side(2), id(7), counts({id})); b = Square(counts({id}), id(7), side(2));`)
	require.NoError(t, err)
	a := instance[*square](t, res, "a")
	b := instance[*square](t, res, "b")
	assert.Equal(t, []int{1}, a.counts)
	assert.Equal(t, a.counts, b.counts)
	assert.Equal(t, int64(7), a.id)

	_, err = evalWith(t, newCatalog(t), `s = Square(side(2), label("x"), tags({label}));`)
	assert.Equal(t, diagnostics.EUnbound, diagnostics.Code(err))
}

func TestBuildObjectMembers(t *testing.T) {
	res, err := evalWith(t, newCatalog(t),
		`sq = Square(side(3)); g = Group(primary(sq), members({sq, Square(side(1)), nullptr}));`)
	require.NoError(t, err)

	sq := instance[*square](t, res, "sq")
	g := instance[*group](t, res, "g")
	assert.Same(t, sq, g.primary)
	require.Len(t, g.members, 3)
	assert.Same(t, sq, g.members[0])
	assert.Nil(t, g.members[2])
	assert.Equal(t, 10.0, g.Area())
}

func TestBuildNullObjectMember(t *testing.T) {
	res, err := evalWith(t, newCatalog(t), `g = Group(primary(nullptr));`)
	require.NoError(t, err)
	assert.Nil(t, instance[*group](t, res, "g").primary)
}

func TestBuildBindOnlyMember(t *testing.T) {
	res, err := evalWith(t, newCatalog(t), `s = Scaled(factor(3), base(Square(side(2))));`)
	require.NoError(t, err)
	assert.Equal(t, 12.0, instance[*scaled](t, res, "s").area)
}

func TestBuildMissingRequiredMember(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `s = Square(label("x"));`)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EMissingField, d.Code)
	assert.Equal(t, "Square requires member 'side' (double)", d.Message)

	_, err = evalWith(t, newCatalog(t), `s = Scaled();`)
	d, _ = diagnostics.As(err)
	assert.Equal(t, "Scaled requires members 'base' (Shape), 'factor' (double)", d.Message)
}

func TestBuildUnknownMemberStrict(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `s = Square(side(1), colour("red"));`)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EUnknownField, d.Code)
	assert.Contains(t, d.Message, "colour")
	assert.Contains(t, d.Hint, "side, label")
	require.NotNil(t, d.Span)
	assert.Equal(t, 21, d.Span.StartCol)
}

func TestBuildUnknownMemberIgnored(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.WarnLevel)
	b := newCatalog(t).Builder(factory.BuildOptions{UnknownFields: factory.UnknownFieldIgnore, Logger: logger})

	res, err := evalWith(t, b, `s = Square(side(1), colour("red"));`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, instance[*square](t, res, "s").side)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "colour", entry.Data["field"])
	assert.Equal(t, "Square", entry.Data["type"])
	assert.Equal(t, "Shape", entry.Data["interface"])
}

func TestBuildDuplicateMember(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `s = Square(side(1), side(2));`)
	assert.Equal(t, diagnostics.EDupField, diagnostics.Code(err))
}

func TestBuildDuplicateDeclaration(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `t = Twice();`)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EDupField, d.Code)
	assert.Contains(t, d.Message, "'a'")
	assert.NotNil(t, d.Span)
}

func TestBuildMemberTypeMismatch(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `s = Square(side("wide"));`)
	assert.Equal(t, diagnostics.EType, diagnostics.Code(err))

	_, err = evalWith(t, newCatalog(t), `s = Square(side(1), counts({1.5}));`)
	assert.Equal(t, diagnostics.EType, diagnostics.Code(err))

	_, err = evalWith(t, newCatalog(t), `g = Group(primary(3));`)
	assert.Equal(t, diagnostics.EType, diagnostics.Code(err))
}

func TestBuildInitErrors(t *testing.T) {
	_, err := evalWith(t, newCatalog(t), `b = Broken(fail(true));`)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EInit, d.Code)
	assert.Equal(t, "Broken: cannot initialize", d.Message)
	require.NotNil(t, d.Span)
	assert.Equal(t, 5, d.Span.StartCol)

	_, err = evalWith(t, newCatalog(t), `b = Broken(reject(true));`)
	assert.Equal(t, diagnostics.EType, diagnostics.Code(err), "diagnostics from Init keep their code")

	res, err := evalWith(t, newCatalog(t), `b = Broken();`)
	require.NoError(t, err)
	assert.True(t, res.Env.Has("b"))
}

func TestBuildFailureBindsNothing(t *testing.T) {
	res, err := evalWith(t, newCatalog(t), `g = Group(primary(Square(label("x"))));`)
	require.Error(t, err)
	assert.False(t, res.Env.Has("g"))
}

func TestConstructResolution(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.Install("tiles", installTiles))

	_, err := evalWith(t, c, `s = Square(side(1));`)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EAmbiguousType, d.Code)
	assert.Contains(t, d.Message, "Shape, Tile")

	res, err := evalWith(t, c, `Shape s = Square(side(1)); Tile t = Square(side(1));`)
	require.NoError(t, err)
	instance[*square](t, res, "s")
	instance[*tile](t, res, "t")

	res, err = evalWith(t, c, `g = Group(primary(Square(side(2))));`)
	require.NoError(t, err, "member types disambiguate nested constructions")
	assert.Equal(t, 2.0, instance[*group](t, res, "g").primary.(*square).side)
}

func TestConstructUnknownType(t *testing.T) {
	c := newCatalog(t)

	_, err := evalWith(t, c, `c = Circle();`)
	d, _ := diagnostics.As(err)
	assert.Equal(t, diagnostics.EUnknownType, d.Code)
	assert.Contains(t, d.Hint, "Square")

	_, err = evalWith(t, c, `Shape c = Circle();`)
	d, _ = diagnostics.As(err)
	assert.Equal(t, diagnostics.EUnknownType, d.Code)
	assert.Equal(t, "unknown Shape type 'Circle'", d.Message)
	assert.Contains(t, d.Hint, "registered Shape types")
}

func TestParseUnknownFieldPolicy(t *testing.T) {
	p, err := factory.ParseUnknownFieldPolicy("ignore")
	require.NoError(t, err)
	assert.Equal(t, factory.UnknownFieldIgnore, p)

	p, err = factory.ParseUnknownFieldPolicy("")
	require.NoError(t, err)
	assert.Equal(t, factory.UnknownFieldFail, p)
	assert.Equal(t, "fail", p.String())

	_, err = factory.ParseUnknownFieldPolicy("maybe")
	assert.Error(t, err)
}
