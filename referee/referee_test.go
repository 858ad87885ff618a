package referee

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFieldContracts(t *testing.T) {
	cases := []struct {
		name     string
		identity []string
		all      func() ([]string, error)
		mutable  func([]string) ([]string, error)
		want     []string
	}{
		{"incident", IncidentIdentity, lww.AllFields[Incident], lww.Fields[Incident], []string{"match", "outcome", "rules", "notes", "assets"}},
		{"scratchpad", ScratchpadIdentity, lww.AllFields[Scratchpad], lww.Fields[Scratchpad], []string{"kind", "notes", "auto_winner", "awp", "stopped"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mutable, err := tc.mutable(tc.identity)
			require.NoError(t, err)
			assert.Equal(t, tc.want, mutable)

			all, err := tc.all()
			require.NoError(t, err)
			assert.ElementsMatch(t, all, append(append([]string{}, tc.identity...), mutable...))
		})
	}
}

func TestIncidentEditsConverge(t *testing.T) {
	created := time.Date(2024, 4, 25, 14, 30, 0, 0, time.UTC)
	rec, err := NewIncident(Incident{
		ID:      "incident1",
		Event:   "RE-VRC-23-3690",
		Team:    "3796B",
		Time:    created,
		Outcome: OutcomeMinor,
		Rules:   []string{"<SG11>"},
		Notes:   "Expansion",
	}, "ref-a")
	require.NoError(t, err)

	onA, err := lww.Update(rec, lww.Change{Key: "match", Value: &MatchRef{Division: 1, Round: "qual", Instance: 1, Number: 42}, Peer: "ref-a"})
	require.NoError(t, err)
	onB, err := lww.Update(rec, lww.Change{Key: "outcome", Value: OutcomeMajor, Peer: "ref-b"})
	require.NoError(t, err)

	a, b := cmap.New[Incident](), cmap.New[Incident]()
	a.Values["incident1"] = onA
	b.Values["incident1"] = onB

	out := cmap.Merge(a, b, IncidentIdentity)
	got := out.Resolved.Values["incident1"].Value
	assert.Equal(t, 42, got.Match.Number)
	assert.Equal(t, OutcomeMajor, got.Outcome)
	assert.Equal(t, created, got.Time)
	assert.Equal(t, []string{"incident1"}, out.Local.Update)
	assert.Equal(t, []string{"incident1"}, out.Remote.Update)
}

func TestScratchpadKindSwitch(t *testing.T) {
	pad, err := NewScratchpad(Scratchpad{ID: "pad1", Event: "E", Match: MatchRef{Round: "qual", Number: 3}, Kind: KindV5RC}, "ref-a")
	require.NoError(t, err)

	switched, err := lww.Update(pad, lww.Change{Key: "kind", Value: KindVIQRC, Peer: "ref-a"})
	require.NoError(t, err)
	switched, err = lww.Update(switched, lww.Change{Key: "stopped", Value: map[string]bool{"1234A": true}, Peer: "ref-a"})
	require.NoError(t, err)

	awp, err := lww.Update(pad, lww.Change{Key: "awp", Value: map[string]bool{"red": true}, Peer: "ref-b"})
	require.NoError(t, err)

	out := lww.Merge(&awp, &switched, ScratchpadIdentity)
	assert.Equal(t, KindVIQRC, out.Resolved.Value.Kind)
	assert.Equal(t, map[string]bool{"1234A": true}, out.Resolved.Value.Stopped)
	assert.Equal(t, map[string]bool{"red": true}, out.Resolved.Value.AWP)
	assert.Equal(t, []string{"kind", "stopped"}, out.Changed)
	assert.Equal(t, []string{"awp"}, out.Rejected)
}

func TestIncidentJSON(t *testing.T) {
	rec, err := lww.InitAt(Incident{
		ID:    "i",
		Event: "E",
		Team:  "1A",
		Time:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Rules: []string{"<G1>"},
	}, IncidentIdentity, "p", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var back lww.Record[Incident]
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
	assert.NoError(t, back.Validate(IncidentIdentity))
}

func TestScratchpadJSON(t *testing.T) {
	flags := []struct {
		name string
		in   map[string]bool
		want map[string]bool
	}{
		{"nil", nil, nil},
		{"empty", map[string]bool{}, nil},
		{"populated", map[string]bool{"red": true, "blue": false}, map[string]bool{"red": true, "blue": false}},
	}
	for _, kind := range []ScratchpadKind{KindV5RC, KindVIQRC} {
		for _, f := range flags {
			t.Run(string(kind)+"/"+f.name, func(t *testing.T) {
				pad, err := NewScratchpad(Scratchpad{ID: "s1", Event: "E", Match: MatchRef{Round: "qual", Number: 7}, Kind: kind}, "ref-a")
				require.NoError(t, err)
				pad, err = lww.Update(pad, lww.Change{Key: "awp", Value: f.in, Peer: "ref-a"})
				require.NoError(t, err)
				pad, err = lww.Update(pad, lww.Change{Key: "stopped", Value: f.in, Peer: "ref-b"})
				require.NoError(t, err)
				require.NoError(t, pad.Validate(ScratchpadIdentity))

				data, err := json.Marshal(pad)
				require.NoError(t, err)
				var back lww.Record[Scratchpad]
				require.NoError(t, json.Unmarshal(data, &back))

				require.NoError(t, back.Validate(ScratchpadIdentity))
				assert.Equal(t, kind, back.Value.Kind)
				assert.Equal(t, f.want, back.Value.AWP)
				assert.Equal(t, f.want, back.Value.Stopped)
				assert.Equal(t, pad.Consistency["stopped"].Count, back.Consistency["stopped"].Count)
				assert.Equal(t, lww.PeerID("ref-b"), back.Consistency["stopped"].Peer)
			})
		}
	}
}

func TestOutcomeFromString(t *testing.T) {
	rec, err := NewIncident(Incident{ID: "i", Event: "E", Team: "1A", Outcome: OutcomeMinor}, "ref-a")
	require.NoError(t, err)

	next, err := lww.Update(rec, lww.Change{Key: "outcome", Value: "Major", Peer: "ref-a"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMajor, next.Value.Outcome)
	assert.NoError(t, next.Validate(IncidentIdentity))
}
