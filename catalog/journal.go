package catalog

import "fmt"

// Op is the kind of change recorded in the journal.
type Op uint8

const (
	OpAdd Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// JournalEntry records one write of the current transaction.
type JournalEntry struct {
	Seq  uint64
	Op   Op
	Kind Kind
	ID   int64
	// Ref is the owning record for records without their own id, e.g. the
	// placement of an allocation column.
	Ref int64
}

func (e JournalEntry) String() string {
	if e.Ref != 0 {
		return fmt.Sprintf("#%d %s %s %d@%d", e.Seq, e.Op, e.Kind, e.ID, e.Ref)
	}
	return fmt.Sprintf("#%d %s %s %d", e.Seq, e.Op, e.Kind, e.ID)
}

// Deletions filters entries down to deletes, in write order.
func Deletions(entries []JournalEntry) []JournalEntry {
	var out []JournalEntry
	for _, e := range entries {
		if e.Op == OpDelete {
			out = append(out, e)
		}
	}
	return out
}
