package main

import (
	"fmt"
	"strings"

	"mypeeps/internal/domain"
)

// match finds the single item whose id equals ref, whose id starts with ref,
// or whose name equals ref ignoring case, in that order of preference.
func match[T any](kind, ref string, items []T, id, name func(T) string) (T, error) {
	var zero T
	for _, it := range items {
		if id(it) == ref {
			return it, nil
		}
	}

	var found []T
	for _, it := range items {
		if strings.HasPrefix(id(it), ref) || strings.EqualFold(name(it), ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return zero, fmt.Errorf("no %s matches %q", kind, ref)
	case 1:
		return found[0], nil
	}
	names := make([]string, len(found))
	for i, it := range found {
		names[i] = fmt.Sprintf("%s (%s)", name(it), id(it))
	}
	return zero, fmt.Errorf("%q matches more than one %s: %s", ref, kind, strings.Join(names, ", "))
}

func resolvePerson(persons []domain.Person, ref string) (domain.Person, error) {
	return match("person", ref, persons,
		func(p domain.Person) string { return p.ID },
		func(p domain.Person) string { return p.Name })
}

func resolveGroup(groups []domain.Group, ref string) (domain.Group, error) {
	return match("group", ref, groups,
		func(g domain.Group) string { return g.ID },
		func(g domain.Group) string { return g.Title })
}
