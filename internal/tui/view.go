package tui

import (
	"fmt"
	"strings"

	"mypeeps/internal/domain"
	"mypeeps/internal/view"
)

func (m Model) View() string {
	var b strings.Builder
	st := m.app.State()
	id := m.app.Identity()

	b.WriteString(m.styles.Title.Render("My Peeps"))
	if id != nil {
		b.WriteString(m.styles.Muted.Render("  " + id.Email))
	}
	b.WriteString("\n\n")

	if id == nil {
		m.renderAuth(&b, st)
		return b.String()
	}

	m.renderTabs(&b, st)
	switch {
	case st.Tab == view.TabPeople:
		m.renderPeople(&b)
	case st.Selected != nil:
		m.renderDetail(&b, *st.Selected)
	default:
		m.renderGroups(&b)
	}

	if modal := m.renderModal(st); modal != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Modal.Render(modal))
		b.WriteString("\n")
	}
	if st.Notice != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Notice.Render(st.Notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help(st)))
	return b.String()
}

func (m Model) renderAuth(b *strings.Builder, st view.State) {
	title, alt := "Log in", "ctrl+r: create an account instead"
	if st.Auth.Mode == view.AuthRegister {
		title, alt = "Create account", "ctrl+r: log in instead"
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if st.Auth.Loading {
		b.WriteString(m.styles.Muted.Render("Working..."))
		b.WriteString("\n")
	}
	if st.Auth.Error != "" {
		b.WriteString(m.styles.Error.Render(st.Auth.Error))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("tab: next field • enter: submit • " + alt + " • ctrl+c: quit"))
}

func (m Model) renderTabs(b *strings.Builder, st view.State) {
	for _, t := range []view.Tab{view.TabPeople, view.TabGroups} {
		style := m.styles.Tab
		if st.Tab == t {
			style = m.styles.TabOn
		}
		b.WriteString(style.Render(strings.ToUpper(t.String()[:1]) + t.String()[1:]))
	}
	b.WriteString("\n\n")
}

func (m Model) row(i int, text string) string {
	if i == m.cursor {
		return m.styles.Cursor.Render("> ") + text + "\n"
	}
	return "  " + text + "\n"
}

func (m Model) personLine(p domain.Person) string {
	line := m.styles.Avatar.Render("["+p.Initial()+"]") + " " + p.Name
	if p.ImageURL != "" {
		line += m.styles.Muted.Render(" (photo)")
	}
	if p.Notes != "" {
		line += m.styles.Muted.Render("  " + firstLine(p.Notes))
	}
	return line
}

func (m Model) renderPeople(b *strings.Builder) {
	persons := m.app.Persons()
	if len(persons) == 0 {
		b.WriteString(m.styles.Muted.Render("No people yet. Press a to add someone."))
		b.WriteString("\n")
		return
	}
	for i, p := range persons {
		b.WriteString(m.row(i, m.personLine(p)))
	}
}

func (m Model) renderGroups(b *strings.Builder) {
	groups := m.app.Groups()
	if len(groups) == 0 {
		b.WriteString(m.styles.Muted.Render("No groups yet. Press a to create one."))
		b.WriteString("\n")
		return
	}
	for i, g := range groups {
		count := len(m.app.Members(g))
		b.WriteString(m.row(i, fmt.Sprintf("%s %s", g.Title, m.styles.Muted.Render(fmt.Sprintf("(%d)", count)))))
	}
}

func (m Model) renderDetail(b *strings.Builder, g domain.Group) {
	b.WriteString(m.styles.Title.Render(g.Title))
	b.WriteString("\n")
	members := m.app.Members(g)
	if len(members) == 0 {
		b.WriteString(m.styles.Muted.Render("Nobody in this group yet."))
		b.WriteString("\n")
		return
	}
	for i, p := range members {
		b.WriteString(m.row(i, m.personLine(p)))
	}
}

func (m Model) renderModal(st view.State) string {
	var b strings.Builder
	switch st.Modal {
	case view.ModalAddPerson, view.ModalEditPerson:
		title := "Add person"
		form := st.NewPerson
		if st.Modal == view.ModalEditPerson {
			title, form = "Edit person", st.Edit
		}
		b.WriteString(m.styles.Title.Render(title) + "\n")
		for _, in := range m.inputs {
			b.WriteString(in.View() + "\n")
		}
		if form.Uploading {
			b.WriteString(m.styles.Muted.Render("Uploading photo...") + "\n")
		}
	case view.ModalAddGroup:
		b.WriteString(m.styles.Title.Render("New group") + "\n")
		for _, in := range m.inputs {
			b.WriteString(in.View() + "\n")
		}
	case view.ModalAssign:
		b.WriteString(m.styles.Title.Render("Groups for "+st.Assign.Name) + "\n")
		groups := m.app.Groups()
		if len(groups) == 0 {
			b.WriteString(m.styles.Muted.Render("Create a group first.") + "\n")
		}
		for i, g := range groups {
			box := "[ ]"
			if st.Assign.Checked[g.ID] {
				box = m.styles.Selected.Render("[x]")
			}
			b.WriteString(m.row(i, box+" "+g.Title))
		}
	case view.ModalDeleteConfirm:
		b.WriteString(m.styles.Title.Render("Delete "+st.Delete.Name+"?") + "\n")
		b.WriteString("They will also be removed from every group. y: delete • n: cancel\n")
	default:
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) help(st view.State) string {
	switch st.Modal {
	case view.ModalAddPerson, view.ModalEditPerson, view.ModalAddGroup:
		return "tab: next field • enter: save (on photo: upload file) • esc: cancel"
	case view.ModalAssign:
		return "j/k: move • space: toggle • enter: save • esc: cancel"
	case view.ModalDeleteConfirm:
		return "y: confirm • n: cancel"
	}
	switch {
	case st.Tab == view.TabPeople:
		return "a: add • e: edit • g: groups • d: delete • tab: groups tab • L: log out • q: quit"
	case st.Selected != nil:
		return "r: remove from group • x: delete group • esc: back • L: log out • q: quit"
	}
	return "a: add • enter: open • x: delete • tab: people tab • L: log out • q: quit"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 40 {
		return line[:37] + "..."
	}
	return line
}
