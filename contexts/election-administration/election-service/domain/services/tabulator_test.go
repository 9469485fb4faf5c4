package services

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

func ballot(voterID string, institute string, selections map[string]string) entities.BallotRecord {
	raw := make(map[string]json.RawMessage, len(selections))
	for key, value := range selections {
		raw[key] = json.RawMessage(value)
	}
	return entities.BallotRecord{VoterID: voterID, VoterInstitute: institute, Selections: raw}
}

func TestTabulateToleratesSingleIDAndSet(t *testing.T) {
	position, _ := electionDefinition().Position("Multimedia Officers")
	ballots := []entities.BallotRecord{
		ballot("v1", "IAS", map[string]string{"Multimedia Officers": `["mm-1","mm-2","mm-3"]`}),
		ballot("v2", "IBCE", map[string]string{"Multimedia Officers": `"mm-1"`}),
		ballot("v3", "IAS", map[string]string{"Multimedia Officers": `["mm-2","mm-2"]`}),
		ballot("v4", "IAS", map[string]string{}),
	}
	result := Tabulate(entities.GlobalPosition("Multimedia Officers"), position, ballots, electionRoster())
	want := map[string]int{"mm-1": 2, "mm-2": 2, "mm-3": 1, "mm-4": 0}
	for candidateID, votes := range want {
		if got := result.VotesFor(candidateID); got != votes {
			t.Fatalf("%s: expected %d votes, got %d", candidateID, votes, got)
		}
	}
	if result.BallotsCounted != 4 || result.Abstentions != 1 {
		t.Fatalf("expected 4 counted and 1 abstention, got %+v", result)
	}
}

func TestTabulateTreatsMalformedAsNoVote(t *testing.T) {
	position, _ := electionDefinition().Position("President")
	ballots := []entities.BallotRecord{
		ballot("v1", "IAS", map[string]string{"President": `42`}),
		ballot("v2", "IAS", map[string]string{"President": `{"id":"pres-1"}`}),
		ballot("v3", "IAS", map[string]string{"President": `["pres-1",7]`}),
		ballot("v4", "IAS", map[string]string{"President": `["pres-1","pres-2"]`}),
		ballot("v5", "IAS", map[string]string{"President": `not json`}),
		ballot("v6", "IAS", map[string]string{"President": `"pres-2"`}),
	}
	result := Tabulate(entities.GlobalPosition("President"), position, ballots, electionRoster())
	if result.Malformed != 5 {
		t.Fatalf("expected 5 malformed selections, got %d", result.Malformed)
	}
	if result.VotesFor("pres-1") != 0 || result.VotesFor("pres-2") != 1 {
		t.Fatalf("unexpected counts %+v", result.Candidates)
	}
}

func TestTabulateExcludesMismatchedInstitute(t *testing.T) {
	position, _ := electionDefinition().Position("Governor")
	ballots := []entities.BallotRecord{
		// A stored IAS ballot carrying an IBCE governor pick must not count.
		ballot("voter-a", "IAS", map[string]string{
			"Multimedia Officers": `["mm-1","mm-2","mm-3"]`,
			"IBCE-Governor":       `"gov-ibce"`,
			"IAS-Governor":        `"gov-ibce"`,
		}),
		ballot("voter-b", "IBCE", map[string]string{"IBCE-Governor": `"gov-ibce"`}),
	}
	ibce := Tabulate(entities.ScopedPosition("IBCE", "Governor"), position, ballots, electionRoster())
	if ibce.VotesFor("gov-ibce") != 1 || ibce.Excluded != 1 {
		t.Fatalf("expected one counted and one excluded IBCE vote, got %+v", ibce)
	}
	ias := Tabulate(entities.ScopedPosition("IAS", "Governor"), position, ballots, electionRoster())
	if ias.VotesFor("gov-ibce") != 0 || ias.Excluded != 1 {
		t.Fatalf("expected ineligible candidate excluded from IAS tally, got %+v", ias)
	}
	officers, _ := electionDefinition().Position("Multimedia Officers")
	global := Tabulate(entities.GlobalPosition("Multimedia Officers"), officers, ballots, electionRoster())
	if global.VotesFor("mm-1") != 1 || global.VotesFor("mm-3") != 1 {
		t.Fatalf("expected global selections still counted, got %+v", global.Candidates)
	}
}

func TestTabulateIsCommutative(t *testing.T) {
	position, _ := electionDefinition().Position("Multimedia Officers")
	values := []string{`["mm-1","mm-2"]`, `"mm-3"`, `["mm-4","mm-1","mm-2"]`, `[]`, `17`, `["mm-2"]`}
	ballots := make([]entities.BallotRecord, 0, 60)
	for i := 0; i < 60; i++ {
		institute := "IAS"
		if i%3 == 0 {
			institute = "IBCE"
		}
		ballots = append(ballots, ballot(string(rune('a'+i%26))+string(rune('0'+i/26)), institute, map[string]string{
			"Multimedia Officers": values[i%len(values)],
		}))
	}
	key := entities.GlobalPosition("Multimedia Officers")
	baseline := Tabulate(key, position, ballots, electionRoster())

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 25; round++ {
		shuffled := append([]entities.BallotRecord(nil), ballots...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		roster := electionRoster()
		rng.Shuffle(len(roster), func(i, j int) { roster[i], roster[j] = roster[j], roster[i] })
		got := Tabulate(key, position, shuffled, roster)
		if !reflect.DeepEqual(baseline, got) {
			t.Fatalf("round %d: tally changed with order\nbaseline=%+v\ngot=%+v", round, baseline, got)
		}
	}
}

func TestDecodeSelection(t *testing.T) {
	tests := []struct {
		raw    string
		want   []string
		wantOK bool
	}{
		{raw: `"a"`, want: []string{"a"}, wantOK: true},
		{raw: `["a","b","a"]`, want: []string{"a", "b"}, wantOK: true},
		{raw: `null`, want: nil, wantOK: true},
		{raw: `""`, want: []string{}, wantOK: true},
		{raw: `true`, wantOK: false},
		{raw: `[1]`, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := DecodeSelection(json.RawMessage(tt.raw))
		if ok != tt.wantOK {
			t.Fatalf("%s: expected ok=%v, got %v", tt.raw, tt.wantOK, ok)
		}
		if tt.wantOK && len(got) != len(tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.raw, tt.want, got)
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Fatalf("%s: expected %v, got %v", tt.raw, tt.want, got)
			}
		}
	}
	if string(EncodeSelection([]string{"x", "x", "y"})) != `["x","y"]` {
		t.Fatal("expected canonical encoding to dedupe")
	}
}
