package view

import (
	"strings"

	"mypeeps/internal/domain"
)

type Tab int

const (
	TabPeople Tab = iota
	TabGroups
)

func (t Tab) String() string {
	if t == TabGroups {
		return "groups"
	}
	return "people"
}

type Modal int

const (
	ModalNone Modal = iota
	ModalAddPerson
	ModalAddGroup
	ModalAssign
	ModalEditPerson
	ModalDeleteConfirm
)

type AuthMode int

const (
	AuthLogin AuthMode = iota
	AuthRegister
)

type AuthForm struct {
	Mode     AuthMode
	Email    string
	Password string
	Error    string
	Loading  bool
}

func (f AuthForm) CanSubmit() bool {
	return !f.Loading && strings.TrimSpace(f.Email) != "" && f.Password != ""
}

// PersonForm backs both the add and edit dialogs. ID is empty when adding.
// Token differs every time a dialog is opened, so late upload results can
// tell whether they still belong to it.
type PersonForm struct {
	ID        string
	Token     int
	Name      string
	Notes     string
	PhotoURL  string
	Uploading bool
}

func (f PersonForm) CanSubmit() bool {
	return !f.Uploading && strings.TrimSpace(f.Name) != ""
}

type GroupForm struct {
	Title string
}

func (f GroupForm) CanSubmit() bool {
	return strings.TrimSpace(f.Title) != ""
}

// AssignForm is the set of groups a person should end up in.
type AssignForm struct {
	PersonID string
	Name     string
	Checked  map[string]bool
}

// GroupIDs returns the checked ids in groups order.
func (f AssignForm) GroupIDs(groups []domain.Group) []string {
	ids := []string{}
	for _, g := range groups {
		if f.Checked[g.ID] {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

type DeleteForm struct {
	ID   string
	Name string
}

// State is the ephemeral UI state. It is never persisted.
type State struct {
	Tab      Tab
	Modal    Modal
	Selected *domain.Group

	Auth      AuthForm
	NewPerson PersonForm
	Edit      PersonForm
	NewGroup  GroupForm
	Assign    AssignForm
	Delete    DeleteForm

	// Notice is the last alert or store error shown to the user.
	Notice string

	// Opened counts person dialogs opened so far and stamps PersonForm.Token.
	Opened int
}

// New returns the initial state for a signed-out user.
func New() State {
	return State{}
}

// Reset returns to defaults, keeping the auth mode and the dialog counter.
func (s *State) Reset() {
	mode, opened := s.Auth.Mode, s.Opened
	*s = New()
	s.Auth.Mode = mode
	s.Opened = opened
}

func (s *State) SwitchTab(t Tab) {
	s.Tab = t
	if t == TabPeople {
		s.Selected = nil
	}
}

func (s *State) ToggleAuthMode() {
	if s.Auth.Mode == AuthLogin {
		s.Auth.Mode = AuthRegister
	} else {
		s.Auth.Mode = AuthLogin
	}
	s.Auth.Error = ""
}

func (s *State) OpenAddPerson() {
	s.Opened++
	s.NewPerson = PersonForm{Token: s.Opened}
	s.Modal = ModalAddPerson
}

func (s *State) OpenAddGroup() {
	s.NewGroup = GroupForm{}
	s.Modal = ModalAddGroup
}

// OpenEdit preloads every editable field, the photo included.
func (s *State) OpenEdit(p domain.Person) {
	s.Opened++
	s.Edit = PersonForm{ID: p.ID, Token: s.Opened, Name: p.Name, Notes: p.Notes, PhotoURL: p.ImageURL}
	s.Modal = ModalEditPerson
}

// OpenAssign checks the groups the person already belongs to.
func (s *State) OpenAssign(p domain.Person, groups []domain.Group) {
	checked := make(map[string]bool)
	for _, g := range groups {
		if g.Has(p.ID) {
			checked[g.ID] = true
		}
	}
	s.Assign = AssignForm{PersonID: p.ID, Name: p.Name, Checked: checked}
	s.Modal = ModalAssign
}

func (s *State) OpenDelete(p domain.Person) {
	s.Delete = DeleteForm{ID: p.ID, Name: p.Name}
	s.Modal = ModalDeleteConfirm
}

// CloseModal discards the open modal's draft.
func (s *State) CloseModal() {
	switch s.Modal {
	case ModalAddPerson:
		s.NewPerson = PersonForm{}
	case ModalAddGroup:
		s.NewGroup = GroupForm{}
	case ModalAssign:
		s.Assign = AssignForm{}
	case ModalEditPerson:
		s.Edit = PersonForm{}
	case ModalDeleteConfirm:
		s.Delete = DeleteForm{}
	}
	s.Modal = ModalNone
}

// Form returns the person form of the open add or edit modal.
func (s *State) Form(m Modal) *PersonForm {
	switch m {
	case ModalAddPerson:
		return &s.NewPerson
	case ModalEditPerson:
		return &s.Edit
	}
	return nil
}

// Clone returns a deep copy safe to hand to renderers.
func (s State) Clone() State {
	if s.Selected != nil {
		g := *s.Selected
		g.PersonIDs = append([]string(nil), g.PersonIDs...)
		s.Selected = &g
	}
	if s.Assign.Checked != nil {
		checked := make(map[string]bool, len(s.Assign.Checked))
		for k, v := range s.Assign.Checked {
			checked[k] = v
		}
		s.Assign.Checked = checked
	}
	return s
}
