package gendb

import "fmt"

// ObjType identifies one of the closed set of primary object types.
type ObjType uint8

const (
	PersonType ObjType = iota + 1
	FamilyType
	EventType
	PlaceType
	SourceType
	CitationType
	RepositoryType
	MediaType
	NoteType
	TagType

	maxObjType = TagType
)

var objTypeNames = [...]string{
	PersonType:     "person",
	FamilyType:     "family",
	EventType:      "event",
	PlaceType:      "place",
	SourceType:     "source",
	CitationType:   "citation",
	RepositoryType: "repository",
	MediaType:      "media",
	NoteType:       "note",
	TagType:        "tag",
}

func (t ObjType) String() string {
	if t >= 1 && t <= maxObjType {
		return objTypeNames[t]
	}
	return fmt.Sprintf("invalid object type %d", uint8(t))
}

// ObjRef names a primary record: its type and handle.
type ObjRef struct {
	Type   ObjType
	Handle Handle
}

// Object is implemented by every primary object type. The set is closed;
// the unexported method keeps foreign implementations out.
type Object interface {
	ObjType() ObjType
	ObjHandle() Handle
	ObjID() string
	SetObjID(id string)

	// References returns every handle this record points at, including those
	// inside nested secondary objects. May contain duplicates.
	References() []ObjRef

	// ReplaceReferences rewrites every reference field equal to old to point
	// at new instead, returning the number of rewritten fields.
	ReplaceReferences(old, new Handle) int

	header() *ObjectHeader
}

// ObjectHeader carries the fields shared by every primary object.
type ObjectHeader struct {
	Handle  Handle `msgpack:"h"`
	ID      string `msgpack:"id"`
	Changed int64  `msgpack:"ch"`
	Private bool   `msgpack:"priv,omitempty"`
}

func (oh *ObjectHeader) ObjHandle() Handle    { return oh.Handle }
func (oh *ObjectHeader) ObjID() string        { return oh.ID }
func (oh *ObjectHeader) SetObjID(id string)   { oh.ID = id }
func (oh *ObjectHeader) header() *ObjectHeader { return oh }

// Capability mixins, embedded by primary and secondary objects that carry
// note, citation or media lists.

type NoteCapable struct {
	NoteList []Handle `msgpack:"nl,omitempty"`
}

type CitationCapable struct {
	CitationList []Handle `msgpack:"cl,omitempty"`
}

type MediaCapable struct {
	MediaList []MediaRef `msgpack:"ml,omitempty"`
}

type TagCapable struct {
	TagList []Handle `msgpack:"tl,omitempty"`
}

// Date is a possibly-irregular date: Sort holds the normalized serial value
// when one could be computed, Text preserves the literal input either way.
type Date struct {
	Sort int64  `msgpack:"s,omitempty"`
	Text string `msgpack:"x,omitempty"`
	Mod  int    `msgpack:"m,omitempty"`
}

// IsEmpty reports whether the date carries neither a normalized value nor text.
func (d Date) IsEmpty() bool {
	return d.Sort == 0 && d.Text == ""
}

// Equal treats two dates as the same when their normalized values match, or,
// when either side lacks a normalized value, when the literal text matches.
func (d Date) Equal(o Date) bool {
	if d.Sort != 0 && o.Sort != 0 {
		return d.Sort == o.Sort
	}
	return d.Text == o.Text
}

const (
	GenderUnknown = iota
	GenderFemale
	GenderMale
)

// Secondary objects: embedded in a primary object's serialized form, never
// independently keyed, but may themselves hold reference fields.

type Name struct {
	First    string `msgpack:"f,omitempty"`
	Surname  string `msgpack:"l,omitempty"`
	Suffix   string `msgpack:"sx,omitempty"`
	Title    string `msgpack:"t,omitempty"`
	NameType int    `msgpack:"nt,omitempty"`
	Private  bool   `msgpack:"priv,omitempty"`
	NoteCapable
	CitationCapable
}

type EventRef struct {
	Ref     Handle `msgpack:"r"`
	Role    int    `msgpack:"ro,omitempty"`
	Private bool   `msgpack:"priv,omitempty"`
	NoteCapable
}

type ChildRef struct {
	Ref       Handle `msgpack:"r"`
	FatherRel int    `msgpack:"fr,omitempty"`
	MotherRel int    `msgpack:"mr,omitempty"`
	Private   bool   `msgpack:"priv,omitempty"`
	NoteCapable
	CitationCapable
}

type MediaRef struct {
	Ref     Handle `msgpack:"r"`
	Rect    []int  `msgpack:"rc,omitempty"`
	Private bool   `msgpack:"priv,omitempty"`
	NoteCapable
	CitationCapable
}

type RepoRef struct {
	Ref        Handle `msgpack:"r"`
	CallNumber string `msgpack:"cn,omitempty"`
	MediaType  int    `msgpack:"mt,omitempty"`
	NoteCapable
}

// Primary objects.

type Person struct {
	ObjectHeader
	PrimaryName      Name       `msgpack:"pn"`
	AltNames         []Name     `msgpack:"an,omitempty"`
	Gender           int        `msgpack:"g,omitempty"`
	EventRefs        []EventRef `msgpack:"er,omitempty"`
	FamilyList       []Handle   `msgpack:"fl,omitempty"`
	ParentFamilyList []Handle   `msgpack:"pfl,omitempty"`
	UIDs             []UID      `msgpack:"uid,omitempty"`
	NoteCapable
	CitationCapable
	MediaCapable
	TagCapable
}

func (p *Person) ObjType() ObjType { return PersonType }

type Family struct {
	ObjectHeader
	Father    Handle     `msgpack:"fa,omitempty"`
	Mother    Handle     `msgpack:"mo,omitempty"`
	ChildRefs []ChildRef `msgpack:"cr,omitempty"`
	RelType   int        `msgpack:"rt,omitempty"`
	EventRefs []EventRef `msgpack:"er,omitempty"`
	UIDs      []UID      `msgpack:"uid,omitempty"`
	NoteCapable
	CitationCapable
	MediaCapable
	TagCapable
}

func (f *Family) ObjType() ObjType { return FamilyType }

type Event struct {
	ObjectHeader
	EventType   int    `msgpack:"et,omitempty"`
	Date        Date   `msgpack:"d,omitempty"`
	Place       Handle `msgpack:"pl,omitempty"`
	Description string `msgpack:"de,omitempty"`
	NoteCapable
	CitationCapable
	MediaCapable
	TagCapable
}

func (e *Event) ObjType() ObjType { return EventType }

type Place struct {
	ObjectHeader
	Parent   Handle   `msgpack:"pa,omitempty"`
	Name     string   `msgpack:"n,omitempty"`
	Title    string   `msgpack:"t,omitempty"`
	Code     string   `msgpack:"co,omitempty"`
	Lat      string   `msgpack:"la,omitempty"`
	Long     string   `msgpack:"lo,omitempty"`
	AltNames []string `msgpack:"an,omitempty"`
	NoteCapable
	CitationCapable
	MediaCapable
	TagCapable
}

func (p *Place) ObjType() ObjType { return PlaceType }

type Source struct {
	ObjectHeader
	Title    string    `msgpack:"t,omitempty"`
	Author   string    `msgpack:"a,omitempty"`
	PubInfo  string    `msgpack:"pi,omitempty"`
	Abbrev   string    `msgpack:"ab,omitempty"`
	RepoRefs []RepoRef `msgpack:"rr,omitempty"`
	NoteCapable
	MediaCapable
	TagCapable
}

func (s *Source) ObjType() ObjType { return SourceType }

type Citation struct {
	ObjectHeader
	Source     Handle `msgpack:"so,omitempty"`
	Page       string `msgpack:"pg,omitempty"`
	Confidence int    `msgpack:"cf,omitempty"`
	Date       Date   `msgpack:"d,omitempty"`
	NoteCapable
	MediaCapable
	TagCapable
}

func (c *Citation) ObjType() ObjType { return CitationType }

type Repository struct {
	ObjectHeader
	RepoType int    `msgpack:"rt,omitempty"`
	Name     string `msgpack:"n,omitempty"`
	NoteCapable
	TagCapable
}

func (r *Repository) ObjType() ObjType { return RepositoryType }

type Media struct {
	ObjectHeader
	Path        string `msgpack:"p,omitempty"`
	MIME        string `msgpack:"mi,omitempty"`
	Description string `msgpack:"de,omitempty"`
	Date        Date   `msgpack:"d,omitempty"`
	NoteCapable
	CitationCapable
	TagCapable
}

func (m *Media) ObjType() ObjType { return MediaType }

type Note struct {
	ObjectHeader
	Text     string `msgpack:"x,omitempty"`
	Format   int    `msgpack:"fo,omitempty"`
	NoteType int    `msgpack:"nt,omitempty"`
	TagCapable
}

func (n *Note) ObjType() ObjType { return NoteType }

type Tag struct {
	ObjectHeader
	Name     string `msgpack:"n,omitempty"`
	Color    string `msgpack:"c,omitempty"`
	Priority int    `msgpack:"pr,omitempty"`
}

func (t *Tag) ObjType() ObjType { return TagType }
