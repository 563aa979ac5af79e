package repo

import (
	"slices"
	"strings"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// insertID places id into ids at the requested position. A nil position
// appends.
func insertID(ids []string, id string, at *int) []string {
	pos := len(ids)
	if at != nil {
		pos = clamp(*at, 0, len(ids))
	}
	return slices.Insert(slices.Clone(ids), pos, id)
}

// moveID repositions an id already in ids. Unknown ids leave ids unchanged.
func moveID(ids []string, id string, to int) []string {
	from := slices.Index(ids, id)
	if from < 0 || len(ids) == 0 {
		return ids
	}
	return board.ArrayMove(ids, from, clamp(to, 0, len(ids)-1))
}

func removeID(ids []string, id string) []string {
	i := slices.Index(ids, id)
	if i < 0 {
		return ids
	}
	return slices.Delete(slices.Clone(ids), i, i+1)
}

// matchTask applies the board filter to one task: exact status and a case
// insensitive substring search over title and description.
func matchTask(t model.Task, f model.BoardFilter) bool {
	if s := f.StatusParam(); s != "" && string(t.Status) != s {
		return false
	}
	q := strings.ToLower(f.SearchParam())
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
}

func idemKey(userID, key string) string {
	return userID + "\x00" + key
}
