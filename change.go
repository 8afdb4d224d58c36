package gendb

import "fmt"

// Op is the kind of mutation a Change describes.
type Op int

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("invalid op %d", int(op))
	}
}

// Change describes one committed mutation. Deliveries happen after the commit
// is durable, on the committing goroutine, in the order the records were
// written.
type Change struct {
	Type   ObjType
	Op     Op
	Handle Handle
}

func (chg Change) String() string {
	return fmt.Sprintf("%s %s/%s", chg.Op, chg.Type, chg.Handle)
}

type ListenerFunc func(chg Change)

// Listen registers f for committed changes to records of the given type.
// Listeners cannot be removed; register them once at startup.
func (db *DB) Listen(typ ObjType, f ListenerFunc) {
	tableFor(typ) // validate
	db.listenerMu.Lock()
	defer db.listenerMu.Unlock()
	db.listeners[typ] = append(db.listeners[typ], f)
}

func (db *DB) notify(changes []Change) {
	for _, chg := range changes {
		db.listenerMu.Lock()
		fns := db.listeners[chg.Type]
		db.listenerMu.Unlock()
		for _, f := range fns {
			f(chg)
		}
	}
}
