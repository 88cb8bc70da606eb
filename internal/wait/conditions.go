package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// Located holds when some element matching loc in the focused context
// satisfies every predicate. The first such element, in document order, is
// returned. With no predicates the element only has to be attached.
func Located(loc schemas.Locator, preds ...StatePredicate) Condition[schemas.Element] {
	desc := fmt.Sprintf("%s to be %s", loc, describePreds(preds))
	return New(desc, func(ctx context.Context, s Scope) (schemas.Element, bool, error) {
		h, err := focused(s)
		if err != nil {
			return schemas.Element{}, false, err
		}
		els, err := s.Driver().ResolveLocator(ctx, h, loc)
		if err != nil {
			return schemas.Element{}, false, err
		}
		for _, el := range els {
			st, err := s.Driver().ElementState(ctx, el)
			if err != nil {
				if driver.IsTransient(err) {
					continue
				}
				return schemas.Element{}, false, err
			}
			if satisfies(st, preds) {
				return el, true, nil
			}
		}
		return schemas.Element{}, false, nil
	})
}

// Present holds once an element matching loc is attached.
func Present(loc schemas.Locator) Condition[schemas.Element] {
	return Located(loc, IsAttached)
}

// Visible holds once an element matching loc is attached and visible.
func Visible(loc schemas.Locator) Condition[schemas.Element] {
	return Located(loc, IsVisible)
}

// Clickable holds once an element matching loc is visible and enabled.
func Clickable(loc schemas.Locator) Condition[schemas.Element] {
	return Located(loc, IsVisible, IsEnabled)
}

// ElementIs holds once an already resolved element satisfies every predicate.
// A detached element yields a stale error, which the poller treats as not yet
// satisfied.
func ElementIs(el schemas.Element, preds ...StatePredicate) Condition[schemas.Element] {
	desc := fmt.Sprintf("%s to be %s", el, describePreds(preds))
	return New(desc, func(ctx context.Context, s Scope) (schemas.Element, bool, error) {
		st, err := s.Driver().ElementState(ctx, el)
		if err != nil {
			return schemas.Element{}, false, err
		}
		if !st.Attached {
			return schemas.Element{}, false, driver.NewStaleElementError(el)
		}
		return el, satisfies(st, preds), nil
	})
}

// AllPresent holds once at least one element matches loc, returning all of them.
func AllPresent(loc schemas.Locator) Condition[[]schemas.Element] {
	return New(fmt.Sprintf("at least one %s", loc), func(ctx context.Context, s Scope) ([]schemas.Element, bool, error) {
		h, err := focused(s)
		if err != nil {
			return nil, false, err
		}
		els, err := s.Driver().ResolveLocator(ctx, h, loc)
		if err != nil {
			return nil, false, err
		}
		return els, len(els) > 0, nil
	})
}

// Invisible holds once no element matching loc is visible. Elements that
// detach while being inspected count as invisible.
func Invisible(loc schemas.Locator) Condition[struct{}] {
	return New(fmt.Sprintf("%s to be invisible", loc), func(ctx context.Context, s Scope) (struct{}, bool, error) {
		h, err := focused(s)
		if err != nil {
			return struct{}{}, false, err
		}
		els, err := s.Driver().ResolveLocator(ctx, h, loc)
		if err != nil {
			return struct{}{}, false, err
		}
		for _, el := range els {
			st, err := s.Driver().ElementState(ctx, el)
			if err != nil {
				if driver.IsTransient(err) {
					continue
				}
				return struct{}{}, false, err
			}
			if st.Attached && st.Visible {
				return struct{}{}, false, nil
			}
		}
		return struct{}{}, true, nil
	})
}

// DialogPresent holds once the focused context has an open dialog.
func DialogPresent() Condition[schemas.Dialog] {
	return New("a dialog to be open", func(ctx context.Context, s Scope) (schemas.Dialog, bool, error) {
		h, err := focused(s)
		if err != nil {
			return schemas.Dialog{}, false, err
		}
		d, err := s.Driver().ActiveDialog(ctx, h)
		if err != nil || d == nil {
			return schemas.Dialog{}, false, err
		}
		return *d, true, nil
	})
}

// ContextCount holds once exactly n contexts exist.
func ContextCount(n int) Condition[schemas.HandleSet] {
	return New(fmt.Sprintf("%d open contexts", n), func(ctx context.Context, s Scope) (schemas.HandleSet, bool, error) {
		set, err := s.Driver().ListContexts(ctx)
		if err != nil {
			return nil, false, err
		}
		return set, len(set) == n, nil
	})
}

// NewContext holds once a context that is not in known exists. When several
// appeared, the lexically first handle is returned.
func NewContext(known schemas.HandleSet) Condition[schemas.Handle] {
	return New(fmt.Sprintf("a context beyond the %d known", len(known)), func(ctx context.Context, s Scope) (schemas.Handle, bool, error) {
		set, err := s.Driver().ListContexts(ctx)
		if err != nil {
			return "", false, err
		}
		fresh := set.Diff(known).Sorted()
		if len(fresh) == 0 {
			return "", false, nil
		}
		return fresh[0], true, nil
	})
}

// TitleContains holds once the focused context's title contains sub.
func TitleContains(sub string) Condition[schemas.ContextInfo] {
	return describedMatch(fmt.Sprintf("title to contain %q", sub), func(info schemas.ContextInfo) bool {
		return strings.Contains(info.Title, sub)
	})
}

// URLContains holds once the focused context's URL contains sub.
func URLContains(sub string) Condition[schemas.ContextInfo] {
	return describedMatch(fmt.Sprintf("url to contain %q", sub), func(info schemas.ContextInfo) bool {
		return strings.Contains(info.URL, sub)
	})
}

func describedMatch(desc string, match func(schemas.ContextInfo) bool) Condition[schemas.ContextInfo] {
	return New(desc, func(ctx context.Context, s Scope) (schemas.ContextInfo, bool, error) {
		h, err := focused(s)
		if err != nil {
			return schemas.ContextInfo{}, false, err
		}
		info, err := s.Driver().Describe(ctx, h)
		if err != nil {
			return schemas.ContextInfo{}, false, err
		}
		return info, match(info), nil
	})
}
