package firestoreadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"campusvote/contexts/election-administration/election-service/domain/entities"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const payloadField = "payload"

const (
	identitiesCollection       = "election_identities"
	casesCollection            = "election_cases"
	applicantLocksCollection   = "election_applicant_locks"
	slotsCollection            = "election_slots"
	rosterCollection           = "election_roster"
	rosterCandidatesCollection = "election_roster_candidates"
	materialsCollection        = "election_materials"
	ballotsCollection          = "election_ballots"
	phasesCollection           = "election_phase_windows"
	activityCollection         = "election_activity"
	notificationsCollection    = "election_notifications"
	locksCollection            = "election_locks"
	archiveRunsCollection      = "election_archive_runs"
	archivesCollection         = "election_archives"
	archiveRecordsCollection   = "records"

	archiveLockDoc = "archive"
)

// liveCollections are cleared by the archive reset.
var liveCollections = []string{
	ballotsCollection,
	materialsCollection,
	rosterCollection,
	rosterCandidatesCollection,
	slotsCollection,
	casesCollection,
	applicantLocksCollection,
	phasesCollection,
	activityCollection,
}

// encode stores the entity as a JSON payload next to the fields queries
// filter on.
func encode(value any, fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any, len(fields)+1)
	for key, field := range fields {
		doc[key] = field
	}
	doc[payloadField] = string(raw)
	return doc, nil
}

func decode(snap *firestore.DocumentSnapshot, out any) error {
	raw, ok := snap.Data()[payloadField].(string)
	if !ok {
		return fmt.Errorf("document %s has no payload", snap.Ref.Path)
	}
	return json.Unmarshal([]byte(raw), out)
}

func decodeAll[T any](snaps []*firestore.DocumentSnapshot) ([]T, error) {
	items := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		var item T
		if err := decode(snap, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func archiveDocID(key entities.ArchiveKey) string {
	return strconv.Itoa(key.Year) + "_" + key.Timestamp
}

// archiveRecord is one raw live-state row kept under an archive.
type archiveRecord struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

var errMalformedRecord = errors.New("malformed archive record")
