package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/kevinxiao27/consistent/referee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 4, 25, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func incident(t *testing.T, id, notes string) lww.Record[referee.Incident] {
	t.Helper()
	rec, err := lww.InitAt(referee.Incident{ID: id, Event: "E", Team: "1A", Time: created, Notes: notes}, referee.IncidentIdentity, "p", created)
	require.NoError(t, err)
	return rec
}

func TestLoadMissingCollection(t *testing.T) {
	s := openStore(t)
	m, err := Load[referee.Incident](s, "incidents")
	require.NoError(t, err)
	assert.Empty(t, m.Values)
	assert.Equal(t, 0, m.Deleted.Len())
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t)
	m := cmap.New[referee.Incident]()
	m.Values["a"] = incident(t, "a", "first")
	m.Values["b"] = incident(t, "b", "second")
	m.Deleted = m.Deleted.Add("b", "z")

	require.NoError(t, Save(s, "incidents", m))

	back, err := Load[referee.Incident](s, "incidents")
	require.NoError(t, err)
	assert.Equal(t, m, back)

	names, err := s.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"incidents"}, names)
}

func TestPersistAppliesLocalObligations(t *testing.T) {
	s := openStore(t)
	local := cmap.New[referee.Incident]()
	local.Values["a"] = incident(t, "a", "first")
	require.NoError(t, Save(s, "incidents", local))

	edited, err := lww.Update(local.Values["a"], lww.Change{Key: "notes", Value: "edited", Peer: "q", Instant: created.Add(time.Minute)})
	require.NoError(t, err)
	remote := cmap.New[referee.Incident]()
	remote.Values["a"] = edited
	remote.Values["c"] = incident(t, "c", "new")
	remote.Deleted = remote.Deleted.Add("a")

	out := cmap.Merge(local, remote, referee.IncidentIdentity)
	require.NoError(t, Persist(s, "incidents", out.Resolved, out.Local))

	back, err := Load[referee.Incident](s, "incidents")
	require.NoError(t, err)
	assert.Equal(t, out.Resolved, back)
	assert.Equal(t, "edited", back.Values["a"].Value.Notes)
}

func TestPersistMissingRecord(t *testing.T) {
	s := openStore(t)
	err := Persist(s, "incidents", cmap.New[referee.Incident](), cmap.Obligations{Create: []string{"ghost"}})
	assert.Error(t, err)

	m, err := Load[referee.Incident](s, "incidents")
	require.NoError(t, err)
	assert.Empty(t, m.Values, "a failed persist writes nothing")
}

func TestDrop(t *testing.T) {
	s := openStore(t)
	require.NoError(t, Save(s, "scratchpads", cmap.New[referee.Scratchpad]()))
	require.NoError(t, s.Drop("scratchpads"))
	assert.ErrorIs(t, s.Drop("scratchpads"), ErrNoCollection)
}
