// Package help provides the quick reference and topic pages for the
// description language.
package help

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NoelToby/refr/pkg/factory"
)

// Version is the language version the help text describes.
const Version = "v0.1"

// QUICKREF is printed by `infact help` with no topic.
var QUICKREF = `infact ` + Version + ` - object descriptions, quick reference

  c = Cow(name("brown"), age(2));              build an object, bind it to c
  Animal a = Cow(name("x"));                   typed declaration
  o = HumanPetOwner(pets({c, Sheep(name("s"))}));  lists and variables
  double d = 3;  int[] v = {1, 2};  f = true;  primitives
  p = nullptr;                                 absent object

Member order does not matter. A trailing comma is accepted.
Comments: // line and /* block */.

Topics (infact help <topic>):
  syntax       grammar of statements and expressions
  types        primitive types, interfaces and coercion
  members      how members are declared and applied
  diagnostics  error codes and what they mean
  config       configuration files and flags
  examples     complete descriptions
`

// TopicList is the ordered list of topic names.
var TopicList = []string{"syntax", "types", "members", "diagnostics", "config", "examples"}

// Topics maps topic names to their text.
var Topics = map[string]string{
	"syntax": `SYNTAX

  program    := statement*
  statement  := Type name '=' expr [';']
              | name '=' expr [';']
              | expr [';']
  Type       := name ['[' ']']
  expr       := TypeName '(' [member (',' member)* [',']] ')'
              | name
              | literal
              | '{' [expr (',' expr)* [',']] '}'
  member     := name '(' expr ')'
  literal    := int | double | "string" | true | false | nullptr

Numbers may carry a sign: -3, +2.5, 1e9. A decimal point or an exponent
makes a double. Strings accept \" \\ \n \t \r \/ and \uXXXX escapes.
`,
	"types": `TYPES

  bool int double string   primitives
  Animal                   any registered interface
  int[]  Animal[]          lists; lists do not nest

An int is accepted where a double is expected; a double is never
accepted as an int. nullptr is accepted for any object or list.
An object is accepted for an interface its type implements.

Without a declared type, a construction is resolved in every interface.
The type name must then be registered under exactly one of them.
An untyped list takes the common type of its items.
`,
	"members": `MEMBERS

Each type declares its members: a name, a type, and whether the member
is required. A description sets members by name in any order.

  Cow(name("brown"))           age keeps its default
  Cow(age(4))                  fails: name is required (E_MISSING_FIELD)
  Cow(name("x"), age("old"))   fails: age is an int (E_TYPE)
  Cow(name("x"), colour(1))    fails: no such member (E_UNKNOWN_FIELD)

A member's value is evaluated where the construction appears, so it
sees earlier statements but never the other members:
  age = 3;
  Sheep(name("dolly"), age(age), counts({age}))

Bind-only members are not stored on the object; the type reads them
once all members are set. Run 'infact types' to list every member.
`,
	"diagnostics": `DIAGNOSTICS

  E_LEX                malformed token, string or comment
  E_PARSE              grammar violation
  E_UNKNOWN_TYPE       type name not registered for the expected interface
  E_AMBIGUOUS_TYPE     untyped construction matches several interfaces
  E_UNKNOWN_INTERFACE  declared type is not an interface or primitive
  E_MISSING_FIELD      required member not set
  E_UNKNOWN_FIELD      member the type does not declare
  E_DUP_FIELD          member set twice
  E_TYPE               value does not fit the expected type
  E_UNBOUND            variable used before assignment
  E_DUP_REGISTRATION   type or interface registered twice
  E_INIT               an object rejected its members
  E_LIMIT              nesting or construction limit exceeded
  E_CANCELED           evaluation canceled
  E_IO                 input could not be read

Exit codes: 0 ok, 1 usage or I/O, 2 lex/parse/validation,
3 unknown type or registration, 4 other evaluation errors.
`,
	"config": `CONFIG

Settings are read from ~/.infact/config.yaml and then ./.infact.yaml;
later files win and command-line flags win over both.

  verbosity: 0             0 warn, 1 info, 2 debug, 3 trace
  unknown_fields: fail     fail | ignore
  max_depth: 64            construction nesting limit
  max_constructions: 0     0 means unlimited
  continue_on_error: false report every failing statement
  history_file: ~/.infact/history
  pretty: true             caret snippets instead of JSON diagnostics

'infact config' prints the effective settings.
`,
	"examples": `EXAMPLES

  // a farm
  Date d = Date(year(1990), month(1), day(10));
  p = Person(name("Fred"), cm_height(180), birthday(d));

  c = Cow(name("brown"));
  Animal[] herd = {c, Sheep(name("dolly"), age(3), counts({1, 2}))};
  owner = HumanPetOwner(pets(herd));
  f = true;

Run it:   infact run farm.infact
Check it: infact check farm.infact
Format:   infact fmt farm.infact --write
`,
}

// MatchTopic finds a topic by exact name or unique prefix.
func MatchTopic(query string) (string, string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[q]; ok {
		return q, content, nil
	}
	var matches []string
	for _, name := range TopicList {
		if q != "" && strings.HasPrefix(name, q) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], Topics[matches[0]], nil
	case 0:
		return "", "", fmt.Errorf("unknown help topic %q", query)
	}
	return "", "", fmt.Errorf("ambiguous help topic %q: %s", query, strings.Join(matches, ", "))
}

// TypeIndex lists the types registered in c, grouped by interface.
func TypeIndex(c *factory.Catalog) string {
	var b strings.Builder
	total := 0
	for _, f := range c.Factories() {
		names := f.Names()
		sort.Strings(names)
		total += len(names)
		fmt.Fprintf(&b, "%-12s %s\n", f.Interface()+":", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "\nTotal: %d types in %d interfaces\n", total, len(c.Interfaces()))
	return b.String()
}
