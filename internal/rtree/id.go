package rtree

// ID identifies a data entry within a Tree, stable until the entry is
// committed-removed by CloneShrink. Insert returns one; Search, Payload,
// MutatePayload and TentativeRetain's predicate all key off it.
type ID int64
