package domain

import "strings"

// SourceEntry is one identifier/raw text pair from the knowledge source.
type SourceEntry struct {
	ID   string
	Text string
}

// Category groups the entries of one top-level key of the knowledge source,
// in document order.
type Category struct {
	Name    string
	Entries []SourceEntry
}

// KnowledgeBase is the loaded snapshot. Categories keep document order so that
// chunking is deterministic.
type KnowledgeBase struct {
	Categories []Category
}

// CategoryNames returns the category names in document order.
func (kb *KnowledgeBase) CategoryNames() []string {
	names := make([]string, 0, len(kb.Categories))
	for _, c := range kb.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Lookup finds a category by name, ignoring case.
func (kb *KnowledgeBase) Lookup(name string) (Category, bool) {
	for _, c := range kb.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// TotalEntries counts raw entries across all categories.
func (kb *KnowledgeBase) TotalEntries() int {
	n := 0
	for _, c := range kb.Categories {
		n += len(c.Entries)
	}
	return n
}
