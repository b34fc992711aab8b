package factory

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
)

// UnknownFieldPolicy decides what happens to a member name the
// constructed type does not declare.
type UnknownFieldPolicy int

const (
	// UnknownFieldFail rejects the construction with E_UNKNOWN_FIELD.
	UnknownFieldFail UnknownFieldPolicy = iota
	// UnknownFieldIgnore skips the member and logs a warning.
	UnknownFieldIgnore
)

func (p UnknownFieldPolicy) String() string {
	if p == UnknownFieldIgnore {
		return "ignore"
	}
	return "fail"
}

// ParseUnknownFieldPolicy maps "fail" and "ignore" to a policy.
func ParseUnknownFieldPolicy(s string) (UnknownFieldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "strict":
		return UnknownFieldFail, nil
	case "ignore", "lenient":
		return UnknownFieldIgnore, nil
	}
	return UnknownFieldFail, fmt.Errorf("unknown field policy %q (want fail or ignore)", s)
}

// BuildOptions configures Build.
type BuildOptions struct {
	UnknownFields UnknownFieldPolicy
	Logger        logrus.FieldLogger
}

func (o BuildOptions) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Build populates obj from the construction ce. Each member expression
// is evaluated through eval against env, coerced to the member's declared
// type, bound in a child scope of env, and written to obj for direct
// members. Members never see each other, so their order does not matter. After every required member is checked, obj.Init is
// called with the construction's raw text and the child scope. obj must
// not be used when Build fails.
func Build(obj Constructible, typeName string, ce *ast.ConstructExpr, env *evaluator.Env, eval evaluator.EvalFunc, opts BuildOptions) error {
	span := ce.Span
	in := newInitializers(typeName)
	obj.RegisterInitializers(in)
	if err := in.err(); err != nil {
		return asDiag(err, &span)
	}

	log := opts.logger().WithField("type", typeName)
	scope := env.Child()
	seen := make(map[string]bool, len(ce.Args))
	for _, arg := range ce.Args {
		argSpan := arg.Span
		if seen[arg.Name] {
			return diagnostics.Errorf(diagnostics.EDupField, &argSpan,
				"member '%s' initialized more than once in %s", arg.Name, typeName)
		}
		seen[arg.Name] = true

		spec, ok := in.Lookup(arg.Name)
		if !ok {
			if opts.UnknownFields == UnknownFieldIgnore {
				log.WithField("field", arg.Name).Warnf("ignoring unknown member at %s", argSpan)
				continue
			}
			return diagnostics.Errorf(diagnostics.EUnknownField, &argSpan,
				"%s has no member '%s'", typeName, arg.Name).
				WithHint(fmt.Sprintf("%s members: %s", typeName, listOrNone(in.Names())))
		}

		v, err := eval(arg.Value, spec.Type, env)
		if err != nil {
			return err
		}
		scope.DefineAs(spec.Name, spec.Type, v)
		if spec.Writer.Kind == DirectWrite && spec.Writer.write != nil {
			if err := spec.Writer.write(v); err != nil {
				return diagnostics.Errorf(diagnostics.EType, &argSpan, "member '%s' of %s: %v", arg.Name, typeName, err)
			}
		}
		log.WithField("field", spec.Name).Tracef("%s = %s", spec.Name, evaluator.Describe(v))
	}

	var missing []string
	for _, spec := range in.specs {
		if spec.Required && !seen[spec.Name] {
			missing = append(missing, fmt.Sprintf("'%s' (%s)", spec.Name, spec.Type))
		}
	}
	if len(missing) > 0 {
		noun := "member"
		if len(missing) > 1 {
			noun = "members"
		}
		return diagnostics.Errorf(diagnostics.EMissingField, &span,
			"%s requires %s %s", typeName, noun, strings.Join(missing, ", "))
	}

	if err := obj.Init(ce.Raw, scope); err != nil {
		var de *diagnostics.Error
		if errors.As(err, &de) {
			return de.WithSpan(&span)
		}
		return diagnostics.Errorf(diagnostics.EInit, &span, "%s: %v", typeName, err)
	}
	return nil
}

func asDiag(err error, span *diagnostics.Span) error {
	var de *diagnostics.Error
	if errors.As(err, &de) {
		return de.WithSpan(span)
	}
	return err
}
