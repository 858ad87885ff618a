package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/kevinxiao27/consistent/referee"
	"github.com/sanity-io/litter"
)

// Two referees edit the same incident offline, one also deletes another
// incident, then they reconcile in both directions.
func main() {
	litter.Config.HidePrivateFields = false

	id, gone := uuid.NewString(), uuid.NewString()
	created := time.Now()

	rec, err := referee.NewIncident(referee.Incident{
		ID:      id,
		Event:   "RE-VRC-23-3690",
		Team:    "3796B",
		Time:    created,
		Outcome: referee.OutcomeMinor,
		Rules:   []string{"<SG11>"},
		Notes:   "Expansion",
	}, "ref-b")
	if err != nil {
		panic(err)
	}
	other, err := referee.NewIncident(referee.Incident{ID: gone, Event: "RE-VRC-23-3690", Team: "1234A", Time: created}, "ref-b")
	if err != nil {
		panic(err)
	}

	a, b := cmap.New[referee.Incident](), cmap.New[referee.Incident]()
	a.Values[id], b.Values[id] = rec, rec
	a.Values[gone], b.Values[gone] = other, other

	a.Values[id], _ = lww.Update(a.Values[id], lww.Change{Key: "notes", Value: "Expansion BMM EDIT", Peer: "ref-a"})
	b.Values[id], _ = lww.Update(b.Values[id], lww.Change{Key: "rules", Value: []string{"<SG8>"}, Peer: "ref-b"})
	b.Deleted = b.Deleted.Add(gone)

	out := cmap.Merge(a, b, referee.IncidentIdentity)
	fmt.Println("local obligations:", litter.Sdump(out.Local))
	fmt.Println("remote obligations:", litter.Sdump(out.Remote))

	a = a.Apply(out.Local, out.Resolved)
	b = b.Apply(out.Remote, out.Resolved)

	resolved, _ := a.Get(id)
	fmt.Printf("Result: notes=%q rules=%v\n", resolved.Value.Notes, resolved.Value.Rules)

	if cmap.Merge(a, b, referee.IncidentIdentity).Converged() {
		fmt.Println("Replicas converged")
	} else {
		fmt.Println("Replicas differ")
	}
	fmt.Println("Live incidents:", len(a.Live()))
}
