package scheduler

import (
	"sort"

	"github.com/timetab-app/timetab-api/internal/models"
)

// Request is one concrete lesson occurrence awaiting a (teacher, room, slot,
// week) tuple. Requests of the same demand differ only by Occurrence; the
// engine treats them as exchangeable but never collapses them.
type Request struct {
	Index      int
	LessonID   string
	Group      models.GroupRef
	Occurrence int
}

// ExpandDemands turns each (lesson, group, count) record into count requests,
// in a deterministic order. Empty demand yields an empty, valid expansion.
func ExpandDemands(snap *Snapshot) []Request {
	demands := make([]Demand, len(snap.Demands))
	copy(demands, snap.Demands)
	sort.Slice(demands, func(i, j int) bool {
		if demands[i].LessonID != demands[j].LessonID {
			return demands[i].LessonID < demands[j].LessonID
		}
		if demands[i].Group.Kind != demands[j].Group.Kind {
			return demands[i].Group.Kind < demands[j].Group.Kind
		}
		return demands[i].Group.ID < demands[j].Group.ID
	})

	var requests []Request
	for _, d := range demands {
		for occ := 0; occ < d.Count; occ++ {
			requests = append(requests, Request{
				Index:      len(requests),
				LessonID:   d.LessonID,
				Group:      d.Group,
				Occurrence: occ,
			})
		}
	}
	return requests
}
