package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"mypeeps/internal/document/model"
)

const (
	PersonsCollection = "persons"
	GroupsCollection  = "groups"

	FieldOwner     = "uid"
	FieldName      = "name"
	FieldNotes     = "notes"
	FieldImageURL  = "imageUrl"
	FieldCreatedAt = "createdAt"
	FieldTitle     = "title"
	FieldPersonIDs = "personIds"
)

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UID   string
	Email string
}

type Person struct {
	ID        string
	UID       string
	Name      string
	Notes     string
	ImageURL  string
	CreatedAt int64
}

type Group struct {
	ID        string
	UID       string
	Title     string
	PersonIDs []string
}

// Has reports whether personID is a member.
func (g Group) Has(personID string) bool {
	for _, id := range g.PersonIDs {
		if id == personID {
			return true
		}
	}
	return false
}

// Without returns a copy of the membership list minus personID.
func (g Group) Without(personID string) []string {
	out := make([]string, 0, len(g.PersonIDs))
	for _, id := range g.PersonIDs {
		if id != personID {
			out = append(out, id)
		}
	}
	return out
}

// With returns a copy of the membership list plus personID.
func (g Group) With(personID string) []string {
	out := make([]string, 0, len(g.PersonIDs)+1)
	out = append(out, g.PersonIDs...)
	return append(out, personID)
}

func (p Person) Fields() map[string]any {
	return map[string]any{
		FieldOwner:     p.UID,
		FieldName:      p.Name,
		FieldNotes:     p.Notes,
		FieldImageURL:  p.ImageURL,
		FieldCreatedAt: p.CreatedAt,
	}
}

func (g Group) Fields() map[string]any {
	ids := g.PersonIDs
	if ids == nil {
		ids = []string{}
	}
	return map[string]any{
		FieldOwner:     g.UID,
		FieldTitle:     g.Title,
		FieldPersonIDs: ids,
	}
}

func PersonFromDocument(d model.Document) Person {
	return Person{
		ID:        d.ID,
		UID:       stringField(d.Fields, FieldOwner),
		Name:      stringField(d.Fields, FieldName),
		Notes:     stringField(d.Fields, FieldNotes),
		ImageURL:  stringField(d.Fields, FieldImageURL),
		CreatedAt: int64Field(d.Fields, FieldCreatedAt),
	}
}

func GroupFromDocument(d model.Document) Group {
	return Group{
		ID:        d.ID,
		UID:       stringField(d.Fields, FieldOwner),
		Title:     stringField(d.Fields, FieldTitle),
		PersonIDs: stringsField(d.Fields, FieldPersonIDs),
	}
}

// PeopleIn joins a membership list against the person list. Ids that no
// longer resolve are skipped, and the person list order is kept.
func PeopleIn(persons []Person, personIDs []string) []Person {
	wanted := make(map[string]bool, len(personIDs))
	for _, id := range personIDs {
		wanted[id] = true
	}
	out := []Person{}
	for _, p := range persons {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Initial is the avatar fallback letter for people without a photo.
func (p Person) Initial() string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0:1]))
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func stringsField(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
