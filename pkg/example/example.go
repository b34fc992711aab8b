// Package example provides small collaborator types that can be built
// from descriptions: dates, people, animals and pet owners. Install
// registers them with a Catalog.
package example

import (
	"fmt"

	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/factory"
)

// Module is the name Install registers under.
const Module = "example"

// Date is a calendar date.
type Date interface {
	factory.Constructible
	Year() int
	Month() int
	Day() int
}

// Person has a name, an optional height and an optional birthday.
type Person interface {
	factory.Constructible
	Name() string
	CmHeight() int
	Birthday() Date
}

// Animal has a name and an age.
type Animal interface {
	factory.Constructible
	Name() string
	Age() int
}

// PetOwner owns a list of animals.
type PetOwner interface {
	factory.Constructible
	NumberOfPets() int
	Pet(i int) (Animal, error)
}

// Interface tags.
var (
	DateTag     = factory.NewTag[Date]("Date")
	PersonTag   = factory.NewTag[Person]("Person")
	AnimalTag   = factory.NewTag[Animal]("Animal")
	PetOwnerTag = factory.NewTag[PetOwner]("PetOwner")
)

// DateImpl is the Date registered as DateImpl and Date.
type DateImpl struct {
	factory.NoInit
	year, month, day int
}

func (d *DateImpl) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "year", &d.year, factory.Required)
	factory.Add(in, "month", &d.month, factory.Required)
	factory.Add(in, "day", &d.day, factory.Required)
}

func (d *DateImpl) Year() int  { return d.year }
func (d *DateImpl) Month() int { return d.month }
func (d *DateImpl) Day() int   { return d.day }

// PersonImpl is the Person registered as PersonImpl and Person.
type PersonImpl struct {
	factory.NoInit
	name     string
	cmHeight int
	birthday Date
}

func (p *PersonImpl) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "name", &p.name, factory.Required)
	factory.Add(in, "cm_height", &p.cmHeight)
	factory.AddObject(in, "birthday", &p.birthday, DateTag)
}

func (p *PersonImpl) Name() string   { return p.name }
func (p *PersonImpl) CmHeight() int  { return p.cmHeight }
func (p *PersonImpl) Birthday() Date { return p.birthday }

// Cow is an Animal whose age defaults to 2.
type Cow struct {
	factory.NoInit
	name string
	age  int
}

// NewCow returns a cow with the default age.
func NewCow() *Cow { return &Cow{age: 2} }

func (c *Cow) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "name", &c.name, factory.Required)
	factory.Add(in, "age", &c.age)
}

func (c *Cow) Name() string { return c.name }
func (c *Cow) Age() int     { return c.age }

// Sheep is an Animal with no age of its own: Age always reports -1. An
// age given in its description is only bound in the construction scope;
// Init stores twice that value.
type Sheep struct {
	name   string
	age    int
	counts []int
}

func (s *Sheep) RegisterInitializers(in *factory.Initializers) {
	factory.Add(in, "name", &s.name, factory.Required)
	factory.AddList(in, "counts", &s.counts)
	factory.BindOnly(in, "age", evaluator.IntType)
}

func (s *Sheep) Init(raw string, env *evaluator.Env) error {
	if _, ok := env.GetLocal("age"); !ok {
		return nil
	}
	age, err := env.LookupInt("age")
	if err != nil {
		return err
	}
	s.age = 2 * int(age)
	return nil
}

func (s *Sheep) Name() string { return s.name }

// Age always returns -1.
func (s *Sheep) Age() int { return -1 }

// StoredAge returns the age computed by Init.
func (s *Sheep) StoredAge() int { return s.age }

// Counts returns the times this sheep was counted.
func (s *Sheep) Counts() []int { return s.counts }

// HumanPetOwner is a PetOwner with a required list of pets.
type HumanPetOwner struct {
	factory.NoInit
	pets []Animal
}

func (h *HumanPetOwner) RegisterInitializers(in *factory.Initializers) {
	factory.AddObjectList(in, "pets", &h.pets, AnimalTag, factory.Required)
}

func (h *HumanPetOwner) NumberOfPets() int { return len(h.pets) }

func (h *HumanPetOwner) Pet(i int) (Animal, error) {
	if i < 0 || i >= len(h.pets) {
		return nil, fmt.Errorf("pet index %d out of range [0, %d)", i, len(h.pets))
	}
	return h.pets[i], nil
}

// Install registers the example types with c. Installing twice is a no-op.
func Install(c *factory.Catalog) error {
	return c.Install(Module, install)
}

func install(c *factory.Catalog) error {
	dates, err := factory.RegistryFor(c, DateTag)
	if err != nil {
		return err
	}
	people, err := factory.RegistryFor(c, PersonTag)
	if err != nil {
		return err
	}
	animals, err := factory.RegistryFor(c, AnimalTag)
	if err != nil {
		return err
	}
	owners, err := factory.RegistryFor(c, PetOwnerTag)
	if err != nil {
		return err
	}

	newDate := func() Date { return &DateImpl{} }
	newPerson := func() Person { return &PersonImpl{} }
	for _, err := range []error{
		dates.Register("DateImpl", newDate),
		dates.Register("Date", newDate),
		people.Register("PersonImpl", newPerson),
		people.Register("Person", newPerson),
		animals.Register("Cow", func() Animal { return NewCow() }),
		animals.Register("Sheep", func() Animal { return &Sheep{} }),
		owners.Register("HumanPetOwner", func() PetOwner { return &HumanPetOwner{} }),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
