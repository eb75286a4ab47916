// Package reconcile diffs the reminders held locally for a dog against a
// fresh fetch from the remote store.
package reconcile

import (
	"github.com/julianstephens/petminder/internal/models"
)

// Result partitions the union of the local and remote sets by id. The four
// slices never share an id.
type Result struct {
	// Unchanged holds the local reminder for ids whose synced fields match.
	Unchanged []*models.Reminder
	// Created holds remote reminders unknown locally and local pending
	// reminders the remote store has not seen yet.
	Created []*models.Reminder
	// Updated holds the remote version of ids that differ. Remote wins.
	Updated []*models.Reminder
	// Deleted holds local assigned reminders the remote store no longer has.
	Deleted []*models.Reminder

	fromRemote []*models.Reminder
}

// Changed reports whether applying the result would modify the local set.
func (r Result) Changed() bool {
	return len(r.Updated) > 0 || len(r.Deleted) > 0 || len(r.fromRemote) > 0
}

// Diff compares local against remote. Equality is by value over the synced
// fields only, so local-only state such as PresentationHandled never causes
// an update.
func Diff(local, remote []*models.Reminder) Result {
	remoteByID := make(map[models.ID]*models.Reminder, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	var res Result
	seen := make(map[models.ID]bool, len(local))
	for _, l := range local {
		seen[l.ID] = true
		r, ok := remoteByID[l.ID]
		switch {
		case !ok && l.ID.IsPending():
			res.Created = append(res.Created, l)
		case !ok:
			res.Deleted = append(res.Deleted, l)
		case l.SyncEqual(r):
			res.Unchanged = append(res.Unchanged, l)
		default:
			res.Updated = append(res.Updated, r)
		}
	}

	for _, r := range remote {
		if !seen[r.ID] {
			seen[r.ID] = true
			res.Created = append(res.Created, r)
			res.fromRemote = append(res.fromRemote, r)
		}
	}
	return res
}

// Apply brings coll in line with res: deleted reminders are removed, updated
// ones are overwritten in place and remote-created ones are added. Updated
// reminders keep their local PresentationHandled flag. It returns
// the ids that were removed so their timers can be invalidated.
func Apply(coll *models.ReminderCollection, res Result) (removed []models.ID) {
	for _, d := range res.Deleted {
		if _, ok := coll.Remove(d.ID); ok {
			removed = append(removed, d.ID)
		}
	}
	for _, u := range res.Updated {
		if existing, ok := coll.Find(u.ID); ok {
			handled := existing.PresentationHandled
			existing.CopyFrom(u)
			existing.PresentationHandled = handled
		}
	}
	for _, c := range res.fromRemote {
		if _, ok := coll.Find(c.ID); !ok {
			_ = coll.Add(c.Clone())
		}
	}
	coll.Sort()
	return removed
}
