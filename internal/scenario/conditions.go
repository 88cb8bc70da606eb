package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/wait"
)

// ErrNoProperties is returned when an expectation needs element properties
// and the driver cannot read them.
var ErrNoProperties = errors.New("driver cannot read element properties")

func toAny[T any](v T) any { return v }

// awaitCondition builds the condition an await step polls for.
func awaitCondition(a AwaitStep) (wait.Condition[any], error) {
	elementCond := func(t *Target, build func(schemas.Locator) wait.Condition[schemas.Element]) (wait.Condition[any], error) {
		loc, err := t.Locator()
		if err != nil {
			return wait.Condition[any]{}, err
		}
		return wait.Map(build(loc), toAny[schemas.Element]), nil
	}

	switch {
	case a.Present != nil:
		return elementCond(a.Present, wait.Present)
	case a.Visible != nil:
		return elementCond(a.Visible, wait.Visible)
	case a.Clickable != nil:
		return elementCond(a.Clickable, wait.Clickable)
	case a.Invisible != nil:
		loc, err := a.Invisible.Locator()
		if err != nil {
			return wait.Condition[any]{}, err
		}
		return wait.Map(wait.Invisible(loc), toAny[struct{}]), nil
	case a.Dialog:
		return wait.Map(wait.DialogPresent(), toAny[schemas.Dialog]), nil
	case a.Contexts > 0:
		return wait.Map(wait.ContextCount(a.Contexts), toAny[schemas.HandleSet]), nil
	case a.Title != "":
		return wait.Map(wait.TitleContains(a.Title), toAny[schemas.ContextInfo]), nil
	case a.URL != "":
		return wait.Map(wait.URLContains(a.URL), toAny[schemas.ContextInfo]), nil
	case len(a.AnyOf) > 0:
		conds, err := nested(a.AnyOf)
		if err != nil {
			return wait.Condition[any]{}, err
		}
		return wait.AnyOf(conds...), nil
	case len(a.AllOf) > 0:
		conds, err := nested(a.AllOf)
		if err != nil {
			return wait.Condition[any]{}, err
		}
		return wait.Map(wait.AllOf(conds...), toAny[[]any]), nil
	}
	return wait.Condition[any]{}, errors.New("await has no condition")
}

func nested(steps []AwaitStep) ([]wait.Condition[any], error) {
	conds := make([]wait.Condition[any], 0, len(steps))
	for _, st := range steps {
		c, err := awaitCondition(st)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// expectation builds the condition an expect step polls for.
func expectation(x ExpectStep) (wait.Condition[any], error) {
	switch {
	case x.Title != "":
		return wait.Map(wait.TitleContains(x.Title), toAny[schemas.ContextInfo]), nil
	case x.URL != "":
		return wait.Map(wait.URLContains(x.URL), toAny[schemas.ContextInfo]), nil
	case x.Contexts > 0:
		return wait.Map(wait.ContextCount(x.Contexts), toAny[schemas.HandleSet]), nil
	}
	loc, err := x.Locator()
	if err != nil {
		return wait.Condition[any]{}, err
	}
	return wait.Map(propertyMatches(loc, x.Property, x.Equals, x.Contains), toAny[string]), nil
}

// propertyMatches holds once the first element matching loc has the named
// property (text when name is empty) equal to *equals, or containing
// contains when equals is nil.
func propertyMatches(loc schemas.Locator, name string, equals *string, contains string) wait.Condition[string] {
	if name == "" {
		name = "text"
	}
	want := fmt.Sprintf("to contain %q", contains)
	match := func(v string) bool { return strings.Contains(v, contains) }
	if equals != nil {
		want = fmt.Sprintf("to equal %q", *equals)
		match = func(v string) bool { return v == *equals }
	}

	present := wait.Present(loc)
	desc := fmt.Sprintf("%s of %s %s", name, loc, want)
	return wait.New(desc, func(ctx context.Context, s wait.Scope) (string, bool, error) {
		reader, ok := s.Driver().(driver.PropertyReader)
		if !ok {
			return "", false, ErrNoProperties
		}
		el, found, err := present.Evaluate(ctx, s)
		if err != nil || !found {
			return "", false, err
		}
		v, err := reader.Property(ctx, el, name)
		if err != nil {
			return "", false, err
		}
		return v, match(v), nil
	})
}
