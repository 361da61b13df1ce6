package service

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

// ChunkConfig controls how raw entries become chunks.
type ChunkConfig struct {
	MinContentLength int
	TitleLength      int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinContentLength: 5,
		TitleLength:      50,
	}
}

const titleEllipsis = "..."

// CategoryProfile describes how entries of one source category are labelled.
type CategoryProfile struct {
	Tag      string
	Label    string
	Metadata map[string]any
}

var knownProfiles = map[string]CategoryProfile{
	"quests": {Tag: "quest", Label: "Quest", Metadata: map[string]any{"type": "dialogue"}},
}

// ProfileFor returns the profile for a source category. Categories without a
// dedicated profile are labelled by their singular name.
func ProfileFor(category string) CategoryProfile {
	if p, ok := knownProfiles[strings.ToLower(category)]; ok {
		return p
	}

	singular := singularize(strings.TrimSpace(category))
	if singular == "" {
		singular = "Entry"
	}
	return CategoryProfile{
		Tag:      strings.ToLower(strings.Join(strings.Fields(singular), "_")),
		Label:    upperFirst(singular),
		Metadata: map[string]any{"type": "text"},
	}
}

// Chunker turns raw knowledge entries into search-ready chunks.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a Chunker. Zero values in cfg fall back to defaults.
func NewChunker(cfg ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if cfg.MinContentLength < 0 {
		cfg.MinContentLength = def.MinContentLength
	}
	if cfg.TitleLength <= 0 {
		cfg.TitleLength = def.TitleLength
	}
	return &Chunker{cfg: cfg}
}

// Chunk converts the entries of one category in order. Entries whose trimmed
// text is shorter than MinContentLength are dropped.
func (c *Chunker) Chunk(category string, entries []domain.SourceEntry) []domain.KnowledgeChunk {
	profile := ProfileFor(category)
	chunks := make([]domain.KnowledgeChunk, 0, len(entries))

	for _, e := range entries {
		clean := strings.TrimSpace(e.Text)
		if clean == "" || utf8.RuneCountInString(clean) < c.cfg.MinContentLength {
			continue
		}

		chunks = append(chunks, domain.KnowledgeChunk{
			Category:   profile.Tag,
			Title:      buildTitle(clean, c.cfg.TitleLength),
			Content:    buildContent(profile.Label, clean, e.ID),
			SourceID:   e.ID,
			SourceFile: domain.DeriveSourceFile(e.ID),
			Metadata:   buildMetadata(profile, category),
		})
	}

	return chunks
}

func buildTitle(clean string, n int) string {
	runes := []rune(clean)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + titleEllipsis
}

func buildContent(label, clean, id string) string {
	return fmt.Sprintf("%s Text: %s\n%s ID: %s", label, clean, label, id)
}

func buildMetadata(p CategoryProfile, category string) map[string]any {
	md := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		md[k] = v
	}
	md["source_category"] = category
	return md
}

func singularize(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ss"):
		return word
	case strings.HasSuffix(lower, "s") && len(word) > 1:
		return word[:len(word)-1]
	}
	return word
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
