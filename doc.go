/*
Package gendb implements an embedded transactional object store for
genealogy records on top of a key-value store (in this case, on top of Bolt).

We implement:

1. Primary tables, one per object type (person, family, event, place, source,
citation, repository, media, note, tag), keyed by opaque handles, with a
human-readable ID lookup table per type.

2. Secondary indices: locale-collated surname order for people, parent-grouped
order for places, and a global reference map recording, for every handle, the
set of records that reference it.

3. Cursors, ordered possibly-duplicate-key iteration over a table or index,
including tree traversal of the place hierarchy.

4. Transactions with a linear undo/redo history. Every mutation records the
full before/after value, so undo restores prior states byte for byte.

5. Merge and diff primitives built entirely on the above.

# Technical Details

**Buckets.**
We rely on scoped namespaces for keys called buckets. Bolt supports them
natively. Each table owns a root bucket holding a “data” bucket plus one
bucket per index; the reference map and the store metadata live in top-level
buckets, because reference map entries cross table boundaries.

**Index ordinals.**
Every index has a fixed positive integer ordinal. The schema is closed, so
ordinals are assigned statically and never reused.

## Binary encoding

**Keys** are raw handle bytes (32 hex characters, fixed length), which makes
the trailing handle of a composite index key recoverable without a separator
scan.

**Value**: value header, then encoded data, then encoded index key records.

**Value header**:
1. Flags (uvarint).
2. Schema version (uvarint).
3. Mod count (uvarint).
4. Data size (uvarint).
5. Index size (uvarint).

**Value data**: msgpack of the record struct.

**Index key records** (inside a value) record the keys this record contributed
to every index, including the reference map. Collation keys are not guaranteed
to be reproducible across collator versions, so we must remember which index
keys to delete when updating or undoing a record. Format:
1. Number of entries (uvarint).
2. For each entry: index ordinal (uvarint), key length (uvarint), key bytes.

The derived buckets (ID maps, surname index, place parent index, reference
map) are caches: all of them are rebuildable from the data buckets alone via
(*DB).Reindex.
*/
package gendb
