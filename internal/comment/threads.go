package comment

import (
	"sort"
	"strings"
)

type Disclosure string

const (
	Collapsed Disclosure = "collapsed"
	Partial   Disclosure = "partial"
	Full      Disclosure = "full"
)

// partialReplies is how many replies the first toggle reveals.
const partialReplies = 2

// Group is a top-level comment and every reply beneath it, flattened.
type Group struct {
	Root    Comment
	Replies []Comment
}

// BuildThreads groups comments under their top-level ancestor. A comment
// whose parent is missing becomes a root itself, as does one whose chain
// loops. Roots are newest first with the pinned root moved to the front;
// replies are oldest first.
func BuildThreads(comments []Comment, pinnedID string) []Group {
	byID := make(map[string]Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	roots := map[string]*Group{}
	var order []string
	for _, c := range comments {
		rootID := rootOf(c, byID)
		g, ok := roots[rootID]
		if !ok {
			g = &Group{Root: byID[rootID]}
			roots[rootID] = g
			order = append(order, rootID)
		}
		if rootID != c.ID {
			g.Replies = append(g.Replies, c)
		}
	}

	groups := make([]Group, 0, len(order))
	for _, id := range order {
		g := roots[id]
		sort.SliceStable(g.Replies, func(i, j int) bool { return olderFirst(g.Replies[i], g.Replies[j]) })
		g.Root.Pinned = g.Root.ID == pinnedID
		groups = append(groups, *g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Root.Pinned != groups[j].Root.Pinned {
			return groups[i].Root.Pinned
		}
		return olderFirst(groups[j].Root, groups[i].Root)
	})
	return groups
}

// rootOf walks parent links up to a comment with no resolvable parent.
func rootOf(c Comment, byID map[string]Comment) string {
	seen := map[string]bool{c.ID: true}
	cur := c
	for cur.ParentID != nil {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			return cur.ID
		}
		if seen[parent.ID] {
			return c.ID
		}
		seen[parent.ID] = true
		cur = parent
	}
	return cur.ID
}

func olderFirst(a, b Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt.Time) {
		return a.CreatedAt.Before(b.CreatedAt.Time)
	}
	return a.ID < b.ID
}

// Next is the state one toggle moves to. A thread with no more than two
// replies skips Full.
func (d Disclosure) Next(replyCount int) Disclosure {
	if replyCount == 0 {
		return Collapsed
	}
	switch d {
	case Partial:
		if replyCount > partialReplies {
			return Full
		}
		return Collapsed
	case Full:
		return Collapsed
	default:
		return Partial
	}
}

// Visible returns the replies d reveals and how many stay hidden.
func (d Disclosure) Visible(replies []Comment) ([]Comment, int) {
	switch d {
	case Full:
		return replies, 0
	case Partial:
		if len(replies) > partialReplies {
			return replies[:partialReplies], len(replies) - partialReplies
		}
		return replies, 0
	default:
		return []Comment{}, len(replies)
	}
}

// ParseReveal reads "id:partial,id2:full". Unknown states are ignored.
func ParseReveal(s string) map[string]Disclosure {
	out := map[string]Disclosure{}
	for _, part := range strings.Split(s, ",") {
		id, state, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || id == "" {
			continue
		}
		switch d := Disclosure(state); d {
		case Collapsed, Partial, Full:
			out[id] = d
		}
	}
	return out
}

// Disclose turns groups into threads using the requested disclosure states.
func Disclose(groups []Group, reveal map[string]Disclosure) []Thread {
	threads := make([]Thread, 0, len(groups))
	for _, g := range groups {
		d, ok := reveal[g.Root.ID]
		if !ok {
			d = Collapsed
		}
		visible, hidden := d.Visible(g.Replies)
		threads = append(threads, Thread{
			Comment:        g.Root,
			Replies:        visible,
			ReplyCount:     len(g.Replies),
			HiddenReplies:  hidden,
			Disclosure:     d,
			NextDisclosure: d.Next(len(g.Replies)),
		})
	}
	return threads
}
