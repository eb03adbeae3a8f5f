package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"mypeeps/internal/app"
	"mypeeps/internal/view"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// changedMsg tells the model the app state moved underneath it.
type changedMsg struct{}

// doneMsg ends a network action started from Update.
type doneMsg struct{ err error }

type formKind int

const (
	formNone formKind = iota
	formAuth
	formAddPerson
	formEditPerson
	formGroup
)

const photoField = 2

type Model struct {
	app    *app.App
	ctx    context.Context
	styles Styles

	form   formKind
	inputs []textinput.Model
	focus  int
	cursor int
	busy   bool
	width  int

	readFile func(string) ([]byte, error)
}

func New(ctx context.Context, a *app.App) Model {
	m := Model{
		app:      a,
		ctx:      ctx,
		styles:   DefaultStyles(),
		readFile: os.ReadFile,
	}
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case changedMsg:
		m.sync()
		return m, nil
	case doneMsg:
		m.busy = false
		m.sync()
		m.refreshPhoto()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if m.form != formNone {
			return m.updateForm(msg)
		}
		switch m.app.State().Modal {
		case view.ModalAssign:
			return m.updateAssign(msg)
		case view.ModalDeleteConfirm:
			return m.updateDelete(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

// sync reloads the text inputs when the visible form changed.
func (m *Model) sync() {
	st := m.app.State()
	kind := formNone
	switch {
	case m.app.Identity() == nil:
		kind = formAuth
	case st.Modal == view.ModalAddPerson:
		kind = formAddPerson
	case st.Modal == view.ModalEditPerson:
		kind = formEditPerson
	case st.Modal == view.ModalAddGroup:
		kind = formGroup
	}
	if kind == m.form {
		return
	}
	m.form = kind
	m.focus = 0
	m.inputs = nil
	switch kind {
	case formAuth:
		email := newInput("email", st.Auth.Email)
		password := newInput("password", st.Auth.Password)
		password.EchoMode = textinput.EchoPassword
		m.inputs = []textinput.Model{email, password}
	case formAddPerson, formEditPerson:
		f := st.NewPerson
		if kind == formEditPerson {
			f = st.Edit
		}
		m.inputs = []textinput.Model{
			newInput("name", f.Name),
			newInput("notes", f.Notes),
			newInput("photo file (enter to upload)", f.PhotoURL),
		}
	case formGroup:
		m.inputs = []textinput.Model{newInput("title", st.NewGroup.Title)}
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
}

// refreshPhoto shows the hosted URL, or nothing, once an upload settled.
func (m *Model) refreshPhoto() {
	if m.form != formAddPerson && m.form != formEditPerson {
		return
	}
	st := m.app.State()
	url := st.NewPerson.PhotoURL
	if m.form == formEditPerson {
		url = st.Edit.PhotoURL
	}
	m.inputs[photoField].SetValue(url)
}

func newInput(placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.SetValue(value)
	return ti
}

func (m Model) run(fn func(ctx context.Context) error) (Model, tea.Cmd) {
	m.busy = true
	ctx := m.ctx
	return m, func() tea.Msg { return doneMsg{err: fn(ctx)} }
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.form != formAuth {
			m.app.CloseModal()
			m.sync()
		}
		return m, nil
	case "ctrl+r":
		if m.form == formAuth {
			m.app.ToggleAuthMode()
		}
		return m, nil
	case "tab", "down":
		m.setFocus(m.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.setFocus(m.focus - 1)
		return m, nil
	case "enter":
		return m.submit()
	}

	m.inputs[m.focus], _ = m.inputs[m.focus].Update(msg)
	m.push()
	return m, nil
}

func (m *Model) setFocus(i int) {
	n := len(m.inputs)
	if n == 0 {
		return
	}
	m.inputs[m.focus].Blur()
	m.focus = (i%n + n) % n
	m.inputs[m.focus].Focus()
}

// push copies the inputs into the app's drafts. The photo field holds a
// file path until it is uploaded, so it is not pushed.
func (m Model) push() {
	values := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		values[i] = in.Value()
	}
	form := m.form
	m.app.Edit(func(s *view.State) {
		switch form {
		case formAuth:
			s.Auth.Email, s.Auth.Password = values[0], values[1]
		case formAddPerson:
			s.NewPerson.Name, s.NewPerson.Notes = values[0], values[1]
		case formEditPerson:
			s.Edit.Name, s.Edit.Notes = values[0], values[1]
		case formGroup:
			s.NewGroup.Title = values[0]
		}
	})
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.form {
	case formAuth:
		return m.run(m.app.SubmitAuth)
	case formGroup:
		return m.run(m.app.AddGroup)
	}

	modal := view.ModalAddPerson
	save := m.app.AddPerson
	if m.form == formEditPerson {
		modal, save = view.ModalEditPerson, m.app.SaveEdit
	}
	path := strings.TrimSpace(m.inputs[photoField].Value())
	if m.focus == photoField && path != "" && !strings.Contains(path, "://") {
		readFile := m.readFile
		return m.run(func(ctx context.Context) error {
			data, err := readFile(path)
			if err != nil {
				m.app.Edit(func(s *view.State) { s.Notice = "Upload failed: " + err.Error() })
				return err
			}
			return m.app.UploadPhoto(ctx, modal, filepath.Base(path), data)
		})
	}
	return m.run(save)
}

func (m Model) updateAssign(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	groups := m.app.Groups()
	switch msg.String() {
	case "esc":
		m.app.CloseModal()
	case "j", "down":
		m.cursor = clamp(m.cursor+1, len(groups))
	case "k", "up":
		m.cursor = clamp(m.cursor-1, len(groups))
	case " ", "x":
		if len(groups) > 0 {
			m.app.ToggleAssign(groups[clamp(m.cursor, len(groups))].ID)
		}
	case "enter":
		return m.run(m.app.SaveAssignment)
	}
	return m, nil
}

func (m Model) updateDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		return m.run(m.app.ConfirmDelete)
	case "n", "esc":
		m.app.CloseModal()
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.app.State()
	rows := m.rowIDs(st)
	current := ""
	if len(rows) > 0 {
		current = rows[clamp(m.cursor, len(rows))]
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "L":
		return m.run(m.app.Logout)
	case "tab":
		next := view.TabGroups
		if st.Tab == view.TabGroups {
			next = view.TabPeople
		}
		m.app.SwitchTab(next)
		m.cursor = 0
		return m, nil
	case "j", "down":
		m.cursor = clamp(m.cursor+1, len(rows))
		return m, nil
	case "k", "up":
		m.cursor = clamp(m.cursor-1, len(rows))
		return m, nil
	case "esc":
		if st.Notice != "" {
			m.app.DismissNotice()
		} else if st.Selected != nil {
			m.app.Edit(func(s *view.State) { s.Selected = nil })
			m.cursor = 0
		}
		return m, nil
	}

	switch {
	case st.Tab == view.TabPeople:
		return m.peopleKey(msg.String(), current)
	case st.Selected != nil:
		return m.detailKey(msg.String(), st.Selected.ID, current)
	default:
		return m.groupsKey(msg.String(), current)
	}
}

func (m Model) peopleKey(key, personID string) (tea.Model, tea.Cmd) {
	switch key {
	case "a":
		m.app.OpenAddPerson()
		m.sync()
	case "e":
		if personID != "" && m.app.OpenEdit(personID) == nil {
			m.sync()
		}
	case "g":
		if personID != "" && m.app.OpenAssign(personID) == nil {
			m.cursor = 0
		}
	case "d":
		if personID != "" {
			_ = m.app.OpenDelete(personID)
		}
	}
	return m, nil
}

func (m Model) groupsKey(key, groupID string) (tea.Model, tea.Cmd) {
	switch key {
	case "a":
		m.app.OpenAddGroup()
		m.sync()
	case "enter":
		if groupID != "" && m.app.SelectGroup(groupID) == nil {
			m.cursor = 0
		}
	case "x":
		if groupID != "" {
			return m.run(func(ctx context.Context) error { return m.app.DeleteGroup(ctx, groupID) })
		}
	}
	return m, nil
}

func (m Model) detailKey(key, groupID, personID string) (tea.Model, tea.Cmd) {
	switch key {
	case "r":
		if personID != "" {
			return m.run(func(ctx context.Context) error { return m.app.RemoveFromSelectedGroup(ctx, personID) })
		}
	case "x":
		return m.run(func(ctx context.Context) error { return m.app.DeleteGroup(ctx, groupID) })
	}
	return m, nil
}

// rowIDs lists the ids behind the rows the cursor moves over.
func (m Model) rowIDs(st view.State) []string {
	var ids []string
	switch {
	case st.Tab == view.TabPeople:
		for _, p := range m.app.Persons() {
			ids = append(ids, p.ID)
		}
	case st.Selected != nil:
		for _, p := range m.app.Members(*st.Selected) {
			ids = append(ids, p.ID)
		}
	default:
		for _, g := range m.app.Groups() {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Run drives the app in a full-screen program until the user quits.
func Run(ctx context.Context, a *app.App, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, a), opts...)

	// Changes can originate inside Update, so Send must never block here.
	notify := make(chan struct{}, 1)
	unsubscribe := a.Subscribe(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-notify:
				p.Send(changedMsg{})
			case <-done:
				return
			}
		}
	}()

	_, err := p.Run()
	return err
}
