package gendb

// refCollector gathers reference fields while walking a record and its
// nested secondary objects.
type refCollector struct {
	refs []ObjRef
}

func (rc *refCollector) add(typ ObjType, h Handle) {
	if h == "" {
		return
	}
	rc.refs = append(rc.refs, ObjRef{typ, h})
}

func (rc *refCollector) addAll(typ ObjType, hs []Handle) {
	for _, h := range hs {
		rc.add(typ, h)
	}
}

func (n *NoteCapable) collectRefs(rc *refCollector) {
	rc.addAll(NoteType, n.NoteList)
}

func (c *CitationCapable) collectRefs(rc *refCollector) {
	rc.addAll(CitationType, c.CitationList)
}

func (m *MediaCapable) collectRefs(rc *refCollector) {
	for i := range m.MediaList {
		m.MediaList[i].collectRefs(rc)
	}
}

func (t *TagCapable) collectRefs(rc *refCollector) {
	rc.addAll(TagType, t.TagList)
}

func (n *Name) collectRefs(rc *refCollector) {
	n.NoteCapable.collectRefs(rc)
	n.CitationCapable.collectRefs(rc)
}

func (er *EventRef) collectRefs(rc *refCollector) {
	rc.add(EventType, er.Ref)
	er.NoteCapable.collectRefs(rc)
}

func (cr *ChildRef) collectRefs(rc *refCollector) {
	rc.add(PersonType, cr.Ref)
	cr.NoteCapable.collectRefs(rc)
	cr.CitationCapable.collectRefs(rc)
}

func (mr *MediaRef) collectRefs(rc *refCollector) {
	rc.add(MediaType, mr.Ref)
	mr.NoteCapable.collectRefs(rc)
	mr.CitationCapable.collectRefs(rc)
}

func (rr *RepoRef) collectRefs(rc *refCollector) {
	rc.add(RepositoryType, rr.Ref)
	rr.NoteCapable.collectRefs(rc)
}

// replaceHandle rewrites h in place if it equals old, returning 1 when it did.
func replaceHandle(h *Handle, old, new Handle) int {
	if *h != "" && *h == old {
		*h = new
		return 1
	}
	return 0
}

func replaceHandles(hs []Handle, old, new Handle) int {
	var n int
	for i := range hs {
		n += replaceHandle(&hs[i], old, new)
	}
	return n
}

func (nc *NoteCapable) replaceRefs(old, new Handle) int {
	return replaceHandles(nc.NoteList, old, new)
}

func (cc *CitationCapable) replaceRefs(old, new Handle) int {
	return replaceHandles(cc.CitationList, old, new)
}

func (mc *MediaCapable) replaceRefs(old, new Handle) int {
	var n int
	for i := range mc.MediaList {
		n += mc.MediaList[i].replaceRefs(old, new)
	}
	return n
}

func (tc *TagCapable) replaceRefs(old, new Handle) int {
	return replaceHandles(tc.TagList, old, new)
}

func (nm *Name) replaceRefs(old, new Handle) int {
	return nm.NoteCapable.replaceRefs(old, new) + nm.CitationCapable.replaceRefs(old, new)
}

func (er *EventRef) replaceRefs(old, new Handle) int {
	return replaceHandle(&er.Ref, old, new) + er.NoteCapable.replaceRefs(old, new)
}

func (cr *ChildRef) replaceRefs(old, new Handle) int {
	return replaceHandle(&cr.Ref, old, new) +
		cr.NoteCapable.replaceRefs(old, new) +
		cr.CitationCapable.replaceRefs(old, new)
}

func (mr *MediaRef) replaceRefs(old, new Handle) int {
	return replaceHandle(&mr.Ref, old, new) +
		mr.NoteCapable.replaceRefs(old, new) +
		mr.CitationCapable.replaceRefs(old, new)
}

func (rr *RepoRef) replaceRefs(old, new Handle) int {
	return replaceHandle(&rr.Ref, old, new) + rr.NoteCapable.replaceRefs(old, new)
}

// Person

func (p *Person) References() []ObjRef {
	var rc refCollector
	p.PrimaryName.collectRefs(&rc)
	for i := range p.AltNames {
		p.AltNames[i].collectRefs(&rc)
	}
	for i := range p.EventRefs {
		p.EventRefs[i].collectRefs(&rc)
	}
	rc.addAll(FamilyType, p.FamilyList)
	rc.addAll(FamilyType, p.ParentFamilyList)
	p.NoteCapable.collectRefs(&rc)
	p.CitationCapable.collectRefs(&rc)
	p.MediaCapable.collectRefs(&rc)
	p.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (p *Person) ReplaceReferences(old, new Handle) int {
	n := p.PrimaryName.replaceRefs(old, new)
	for i := range p.AltNames {
		n += p.AltNames[i].replaceRefs(old, new)
	}
	for i := range p.EventRefs {
		n += p.EventRefs[i].replaceRefs(old, new)
	}
	n += replaceHandles(p.FamilyList, old, new)
	n += replaceHandles(p.ParentFamilyList, old, new)
	n += p.NoteCapable.replaceRefs(old, new)
	n += p.CitationCapable.replaceRefs(old, new)
	n += p.MediaCapable.replaceRefs(old, new)
	n += p.TagCapable.replaceRefs(old, new)
	return n
}

// Family

func (f *Family) References() []ObjRef {
	var rc refCollector
	rc.add(PersonType, f.Father)
	rc.add(PersonType, f.Mother)
	for i := range f.ChildRefs {
		f.ChildRefs[i].collectRefs(&rc)
	}
	for i := range f.EventRefs {
		f.EventRefs[i].collectRefs(&rc)
	}
	f.NoteCapable.collectRefs(&rc)
	f.CitationCapable.collectRefs(&rc)
	f.MediaCapable.collectRefs(&rc)
	f.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (f *Family) ReplaceReferences(old, new Handle) int {
	n := replaceHandle(&f.Father, old, new)
	n += replaceHandle(&f.Mother, old, new)
	for i := range f.ChildRefs {
		n += f.ChildRefs[i].replaceRefs(old, new)
	}
	for i := range f.EventRefs {
		n += f.EventRefs[i].replaceRefs(old, new)
	}
	n += f.NoteCapable.replaceRefs(old, new)
	n += f.CitationCapable.replaceRefs(old, new)
	n += f.MediaCapable.replaceRefs(old, new)
	n += f.TagCapable.replaceRefs(old, new)
	return n
}

// Event

func (e *Event) References() []ObjRef {
	var rc refCollector
	rc.add(PlaceType, e.Place)
	e.NoteCapable.collectRefs(&rc)
	e.CitationCapable.collectRefs(&rc)
	e.MediaCapable.collectRefs(&rc)
	e.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (e *Event) ReplaceReferences(old, new Handle) int {
	n := replaceHandle(&e.Place, old, new)
	n += e.NoteCapable.replaceRefs(old, new)
	n += e.CitationCapable.replaceRefs(old, new)
	n += e.MediaCapable.replaceRefs(old, new)
	n += e.TagCapable.replaceRefs(old, new)
	return n
}

// Place

func (p *Place) References() []ObjRef {
	var rc refCollector
	rc.add(PlaceType, p.Parent)
	p.NoteCapable.collectRefs(&rc)
	p.CitationCapable.collectRefs(&rc)
	p.MediaCapable.collectRefs(&rc)
	p.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (p *Place) ReplaceReferences(old, new Handle) int {
	n := replaceHandle(&p.Parent, old, new)
	n += p.NoteCapable.replaceRefs(old, new)
	n += p.CitationCapable.replaceRefs(old, new)
	n += p.MediaCapable.replaceRefs(old, new)
	n += p.TagCapable.replaceRefs(old, new)
	return n
}

// Source

func (s *Source) References() []ObjRef {
	var rc refCollector
	for i := range s.RepoRefs {
		s.RepoRefs[i].collectRefs(&rc)
	}
	s.NoteCapable.collectRefs(&rc)
	s.MediaCapable.collectRefs(&rc)
	s.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (s *Source) ReplaceReferences(old, new Handle) int {
	var n int
	for i := range s.RepoRefs {
		n += s.RepoRefs[i].replaceRefs(old, new)
	}
	n += s.NoteCapable.replaceRefs(old, new)
	n += s.MediaCapable.replaceRefs(old, new)
	n += s.TagCapable.replaceRefs(old, new)
	return n
}

// Citation

func (c *Citation) References() []ObjRef {
	var rc refCollector
	rc.add(SourceType, c.Source)
	c.NoteCapable.collectRefs(&rc)
	c.MediaCapable.collectRefs(&rc)
	c.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (c *Citation) ReplaceReferences(old, new Handle) int {
	n := replaceHandle(&c.Source, old, new)
	n += c.NoteCapable.replaceRefs(old, new)
	n += c.MediaCapable.replaceRefs(old, new)
	n += c.TagCapable.replaceRefs(old, new)
	return n
}

// Repository

func (r *Repository) References() []ObjRef {
	var rc refCollector
	r.NoteCapable.collectRefs(&rc)
	r.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (r *Repository) ReplaceReferences(old, new Handle) int {
	return r.NoteCapable.replaceRefs(old, new) + r.TagCapable.replaceRefs(old, new)
}

// Media

func (m *Media) References() []ObjRef {
	var rc refCollector
	m.NoteCapable.collectRefs(&rc)
	m.CitationCapable.collectRefs(&rc)
	m.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (m *Media) ReplaceReferences(old, new Handle) int {
	return m.NoteCapable.replaceRefs(old, new) +
		m.CitationCapable.replaceRefs(old, new) +
		m.TagCapable.replaceRefs(old, new)
}

// Note

func (n *Note) References() []ObjRef {
	var rc refCollector
	n.TagCapable.collectRefs(&rc)
	return rc.refs
}

func (n *Note) ReplaceReferences(old, new Handle) int {
	return n.TagCapable.replaceRefs(old, new)
}

// Tag

func (t *Tag) References() []ObjRef { return nil }

func (t *Tag) ReplaceReferences(old, new Handle) int { return 0 }
