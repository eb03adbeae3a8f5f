package app

import (
	"context"
	"errors"
	"fmt"

	"mypeeps/internal/registry"
	"mypeeps/internal/view"
	"mypeeps/pkg/logger"
)

// SubmitAuth logs in or registers with the auth form, depending on its mode.
// A failure is shown on the form and leaves the session untouched.
func (a *App) SubmitAuth(ctx context.Context) error {
	a.mu.Lock()
	form := a.state.Auth
	if !form.CanSubmit() {
		a.mu.Unlock()
		return nil
	}
	a.state.Auth.Loading = true
	a.state.Auth.Error = ""
	a.mu.Unlock()
	a.changed()

	var err error
	if form.Mode == view.AuthRegister {
		err = a.session.Register(ctx, form.Email, form.Password)
	} else {
		err = a.session.Login(ctx, form.Email, form.Password)
	}

	a.update(func(s *view.State) {
		s.Auth.Loading = false
		if err != nil {
			s.Auth.Error = err.Error()
			return
		}
		s.Auth.Password = ""
	})
	return err
}

func (a *App) ToggleAuthMode() { a.update((*view.State).ToggleAuthMode) }

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return a.fail(fmt.Errorf("logout: %w", err))
	}
	return nil
}

func (a *App) SwitchTab(t view.Tab) {
	a.update(func(s *view.State) { s.SwitchTab(t) })
}

func (a *App) OpenAddPerson() { a.update((*view.State).OpenAddPerson) }

func (a *App) OpenAddGroup() { a.update((*view.State).OpenAddGroup) }

func (a *App) CloseModal() { a.update((*view.State).CloseModal) }

func (a *App) DismissNotice() {
	a.update(func(s *view.State) { s.Notice = "" })
}

func (a *App) OpenEdit(personID string) error {
	p, ok := a.persons.Get(personID)
	if !ok {
		return ErrUnknownItem
	}
	a.update(func(s *view.State) { s.OpenEdit(p) })
	return nil
}

func (a *App) OpenAssign(personID string) error {
	p, ok := a.persons.Get(personID)
	if !ok {
		return ErrUnknownItem
	}
	groups := a.groups.List()
	a.update(func(s *view.State) { s.OpenAssign(p, groups) })
	return nil
}

func (a *App) OpenDelete(personID string) error {
	p, ok := a.persons.Get(personID)
	if !ok {
		return ErrUnknownItem
	}
	a.update(func(s *view.State) { s.OpenDelete(p) })
	return nil
}

// UploadPhoto uploads data for the add or edit form. While it runs the form
// cannot be submitted and no other upload can start on it. On failure the
// form's photo is cleared.
func (a *App) UploadPhoto(ctx context.Context, modal view.Modal, filename string, data []byte) error {
	a.mu.Lock()
	form := a.state.Form(modal)
	if form == nil || a.state.Modal != modal {
		a.mu.Unlock()
		return ErrNoForm
	}
	if form.Uploading {
		a.mu.Unlock()
		return ErrUploadPending
	}
	token := form.Token
	form.Uploading = true
	a.mu.Unlock()
	a.changed()

	var (
		url string
		err = ErrNoUploader
	)
	if a.uploader != nil {
		url, err = a.uploader.Upload(ctx, filename, data)
	}

	a.update(func(s *view.State) {
		form := s.Form(modal)
		if s.Modal != modal || form.Token != token {
			// the form was closed or reopened meanwhile
			return
		}
		form.Uploading = false
		if err != nil {
			form.PhotoURL = ""
			s.Notice = fmt.Sprintf("Upload failed: %v", err)
			return
		}
		form.PhotoURL = url
	})
	if err != nil {
		logger.Sugar.Warnf("app: upload of %s failed: %v", filename, err)
	}
	return err
}

func (a *App) AddPerson(ctx context.Context) error {
	a.mu.Lock()
	form := a.state.NewPerson
	a.mu.Unlock()
	if !form.CanSubmit() {
		return nil
	}
	if _, err := a.persons.Create(ctx, form.Name, form.Notes, form.PhotoURL); err != nil {
		if errors.Is(err, registry.ErrBlankName) {
			return nil
		}
		return a.fail(err)
	}
	a.closeIfOpen(view.ModalAddPerson)
	return nil
}

func (a *App) SaveEdit(ctx context.Context) error {
	a.mu.Lock()
	form := a.state.Edit
	a.mu.Unlock()
	if form.ID == "" || !form.CanSubmit() {
		return nil
	}
	if err := a.persons.Update(ctx, form.ID, form.Name, form.Notes, form.PhotoURL); err != nil {
		if errors.Is(err, registry.ErrBlankName) {
			return nil
		}
		return a.fail(err)
	}
	a.closeIfOpen(view.ModalEditPerson)
	return nil
}

// ConfirmDelete removes the person in the delete dialog along with its
// memberships.
func (a *App) ConfirmDelete(ctx context.Context) error {
	a.mu.Lock()
	id := a.state.Delete.ID
	a.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := a.persons.Delete(ctx, id); err != nil {
		return a.fail(err)
	}
	a.closeIfOpen(view.ModalDeleteConfirm)
	return nil
}

func (a *App) AddGroup(ctx context.Context) error {
	a.mu.Lock()
	form := a.state.NewGroup
	a.mu.Unlock()
	if !form.CanSubmit() {
		return nil
	}
	if _, err := a.groups.Create(ctx, form.Title); err != nil {
		if errors.Is(err, registry.ErrBlankTitle) {
			return nil
		}
		return a.fail(err)
	}
	a.closeIfOpen(view.ModalAddGroup)
	return nil
}

func (a *App) ToggleAssign(groupID string) {
	a.update(func(s *view.State) {
		if s.Assign.Checked == nil {
			s.Assign.Checked = make(map[string]bool)
		}
		s.Assign.Checked[groupID] = !s.Assign.Checked[groupID]
	})
}

// SaveAssignment makes the person a member of exactly the checked groups.
func (a *App) SaveAssignment(ctx context.Context) error {
	a.mu.Lock()
	form := a.state.Clone().Assign
	a.mu.Unlock()
	if form.PersonID == "" {
		return nil
	}
	if err := a.groups.SetMembership(ctx, form.PersonID, form.GroupIDs(a.groups.List())); err != nil {
		return a.fail(err)
	}
	a.closeIfOpen(view.ModalAssign)
	return nil
}

// DeleteGroup removes a group and clears the selection if it pointed at it.
func (a *App) DeleteGroup(ctx context.Context, groupID string) error {
	if err := a.groups.Delete(ctx, groupID); err != nil {
		return a.fail(err)
	}
	a.update(func(s *view.State) {
		if s.Selected != nil && s.Selected.ID == groupID {
			s.Selected = nil
		}
	})
	return nil
}

// SelectGroup opens the detail view on a snapshot of the group.
func (a *App) SelectGroup(groupID string) error {
	g, ok := a.groups.Get(groupID)
	if !ok {
		return ErrUnknownItem
	}
	a.update(func(s *view.State) {
		s.Tab = view.TabGroups
		s.Selected = &g
	})
	return nil
}

// RemoveFromSelectedGroup drops a person from the group in the detail view
// and refreshes the selection with the list just written.
func (a *App) RemoveFromSelectedGroup(ctx context.Context, personID string) error {
	a.mu.Lock()
	sel := a.state.Selected
	a.mu.Unlock()
	if sel == nil {
		return nil
	}
	ids, err := a.groups.RemoveMember(ctx, sel.ID, personID)
	if err != nil {
		return a.fail(err)
	}
	a.update(func(s *view.State) {
		if s.Selected != nil && s.Selected.ID == sel.ID {
			g := *s.Selected
			g.PersonIDs = ids
			s.Selected = &g
		}
	})
	return nil
}

func (a *App) closeIfOpen(m view.Modal) {
	a.update(func(s *view.State) {
		if s.Modal == m {
			s.CloseModal()
		}
		s.Notice = ""
	})
}
