package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mypeeps/config"
	"mypeeps/config/database"
	"mypeeps/internal/app"
	"mypeeps/internal/document/model"
	"mypeeps/internal/domain"
	"mypeeps/internal/media/cloudinary"
	"mypeeps/internal/view"
	"mypeeps/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Server{
		DBDriver:    config.DriverSQLite,
		JWTSecret:   "remote-test",
		TokenTTL:    time.Hour,
		MediaDir:    t.TempDir(),
		CORSOrigins: []string{"*"},
		Collections: []string{domain.PersonsCollection, domain.GroupsCollection},
	}
	db, err := database.Open(context.Background(), database.SQLite, database.SQLiteDSN(":memory:"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, database.SQLite))

	server, err := router.Setup(cfg, db, database.SQLite)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go server.Hub.Run(ctx)

	srv := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-server.Hub.Done()
		db.Close()
	})
	return srv
}

func TestAuthErrorsCarryServerMessage(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.URL)
	ctx := context.Background()

	err := c.SignIn(ctx, "ghost@example.com", "whatever")
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.Error())
	assert.True(t, IsUnauthorized(err))

	err = c.CreateAccount(ctx, "ana@example.com", "123")
	assert.EqualError(t, err, "password should be at least 6 characters")
	assert.Nil(t, c.Current())
}

func TestProfileRestoresSession(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	profile := Profile{Path: filepath.Join(t.TempDir(), "nested", "profile.yaml"), Server: srv.URL}

	first := New(srv.URL, WithTokenStore(profile))
	require.NoError(t, first.CreateAccount(ctx, "Ana@example.com", "hunter22"))
	creds, err := profile.Load()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", creds.Email)

	second := New(srv.URL, WithTokenStore(profile))
	require.NoError(t, second.Restore(ctx))
	require.NotNil(t, second.Current())
	assert.Equal(t, creds.UserID, second.Current().UID)

	require.NoError(t, second.SignOut(ctx))
	creds, err = profile.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.Token)
}

func TestRestoreDropsRejectedToken(t *testing.T) {
	srv := newBackend(t)
	profile := Profile{Path: filepath.Join(t.TempDir(), "profile.yaml"), Server: srv.URL}
	require.NoError(t, profile.Save(Credentials{Token: "not-a-jwt", UserID: "u1", Email: "x@example.com"}))

	c := New(srv.URL, WithTokenStore(profile))
	require.NoError(t, c.Restore(context.Background()))
	assert.Nil(t, c.Current())

	raw, err := os.ReadFile(profile.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "not-a-jwt")
}

func TestSubscriptionDeliversSnapshots(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	c := New(srv.URL)
	require.NoError(t, c.CreateAccount(ctx, "ana@example.com", "hunter22"))
	uid := c.Current().UID

	q := model.Query{Collection: domain.PersonsCollection, Where: []model.Filter{model.Eq(domain.FieldOwner, uid)}, OrderBy: domain.FieldCreatedAt, Desc: true}
	snaps := make(chan []model.Document, 16)
	stop, err := c.Subscribe(q, func(docs []model.Document) { snaps <- docs })
	require.NoError(t, err)

	first := <-snaps
	assert.Empty(t, first)

	_, err = c.Insert(ctx, domain.PersonsCollection, domain.Person{UID: uid, Name: "Old", CreatedAt: 1}.Fields())
	require.NoError(t, err)
	newID, err := c.Insert(ctx, domain.PersonsCollection, domain.Person{UID: uid, Name: "New", CreatedAt: 2}.Fields())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for {
			select {
			case docs := <-snaps:
				if len(docs) == 2 {
					return docs[0].ID == newID
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 20*time.Millisecond)

	stop()
	stop()
}

func TestListReadsOnce(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	c := New(srv.URL)
	require.NoError(t, c.CreateAccount(ctx, "ana@example.com", "hunter22"))
	uid := c.Current().UID

	_, err := c.Insert(ctx, domain.PersonsCollection, domain.Person{UID: uid, Name: "Old", CreatedAt: 1}.Fields())
	require.NoError(t, err)
	_, err = c.Insert(ctx, domain.PersonsCollection, domain.Person{UID: uid, Name: "New", CreatedAt: 2}.Fields())
	require.NoError(t, err)

	q := model.Query{Collection: domain.PersonsCollection, Where: []model.Filter{model.Eq(domain.FieldOwner, uid)}, OrderBy: domain.FieldCreatedAt, Desc: true}
	docs, err := c.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "New", domain.PersonFromDocument(docs[0]).Name)
	assert.Equal(t, "Old", domain.PersonFromDocument(docs[1]).Name)

	_, err = c.List(ctx, model.Query{Collection: domain.PersonsCollection, Where: []model.Filter{model.Eq(domain.FieldOwner, "someone-else")}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestSubscribeRejectsForeignOwner(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.URL)
	require.NoError(t, c.CreateAccount(context.Background(), "ana@example.com", "hunter22"))

	_, err := c.Subscribe(model.Query{Collection: domain.PersonsCollection, Where: []model.Filter{model.Eq(domain.FieldOwner, "someone-else")}}, func([]model.Document) {})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestAppEndToEndOverBackend(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	c := New(srv.URL)
	up, err := cloudinary.New("demo", "peeps", cloudinary.WithBaseURL(srv.URL))
	require.NoError(t, err)

	a := app.New(app.Config{Identity: c, Store: c, Uploader: up, Atomic: true})
	defer a.Close()

	a.ToggleAuthMode()
	a.Edit(func(s *view.State) {
		s.Auth.Email = "ana@example.com"
		s.Auth.Password = "hunter22"
	})
	require.NoError(t, a.SubmitAuth(ctx))
	require.NoError(t, a.WaitSynced(ctx))

	a.OpenAddPerson()
	a.Edit(func(s *view.State) { s.NewPerson.Name = "Ana" })
	require.NoError(t, a.UploadPhoto(ctx, view.ModalAddPerson, "ana.png", pngHeader))
	require.Contains(t, a.State().NewPerson.PhotoURL, srv.URL+"/media/")
	require.NoError(t, a.AddPerson(ctx))

	a.OpenAddGroup()
	a.Edit(func(s *view.State) { s.NewGroup.Title = "Friends" })
	require.NoError(t, a.AddGroup(ctx))

	require.Eventually(t, func() bool {
		return len(a.Persons()) == 1 && len(a.Groups()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	ana, friends := a.Persons()[0], a.Groups()[0]

	require.NoError(t, a.OpenAssign(ana.ID))
	a.ToggleAssign(friends.ID)
	require.NoError(t, a.SaveAssignment(ctx))
	require.Eventually(t, func() bool {
		g, _ := firstGroup(a)
		return g.Has(ana.ID)
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, a.OpenDelete(ana.ID))
	require.NoError(t, a.ConfirmDelete(ctx))
	require.Eventually(t, func() bool {
		g, ok := firstGroup(a)
		return ok && len(g.PersonIDs) == 0 && len(a.Persons()) == 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Logout(ctx))
	assert.Empty(t, a.Persons())
	assert.Empty(t, a.Groups())
}

func firstGroup(a *app.App) (domain.Group, bool) {
	groups := a.Groups()
	if len(groups) == 0 {
		return domain.Group{}, false
	}
	return groups[0], true
}
