package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

const dataKey = "data"

// Decode parses a knowledge snapshot of the form
// {"data": {"<Category>": {"<id>": "<text>"}}} keeping key order.
// A document without "data" decodes to an empty knowledge base.
func Decode(r io.Reader) (*domain.KnowledgeBase, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}

	kb := &domain.KnowledgeBase{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != dataKey {
			if err := skipValue(dec); err != nil {
				return nil, fmt.Errorf("skip %q: %w", key, err)
			}
			continue
		}
		categories, err := decodeCategories(dec)
		if err != nil {
			return nil, err
		}
		kb.Categories = categories
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after document")
	}

	return kb, nil
}

func decodeCategories(dec *json.Decoder) ([]domain.Category, error) {
	isNull, err := openObject(dec)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", dataKey, err)
	}
	if isNull {
		return nil, nil
	}

	var categories []domain.Category
	seen := make(map[string]int)
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		entries, err := decodeEntries(dec, name)
		if err != nil {
			return nil, err
		}
		if i, ok := seen[name]; ok {
			categories[i].Entries = entries
			continue
		}
		seen[name] = len(categories)
		categories = append(categories, domain.Category{Name: name, Entries: entries})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%q: %w", dataKey, err)
	}
	return categories, nil
}

func decodeEntries(dec *json.Decoder, category string) ([]domain.SourceEntry, error) {
	isNull, err := openObject(dec)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", category, err)
	}
	if isNull {
		return nil, nil
	}

	var entries []domain.SourceEntry
	seen := make(map[string]int)
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("entry %q/%q: %w", category, id, err)
		}
		text, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("entry %q/%q: expected string, got %v", category, id, tok)
		}
		// Repeated ids keep their first position and the last text.
		if i, ok := seen[id]; ok {
			entries[i].Text = text
			continue
		}
		seen[id] = len(entries)
		entries = append(entries, domain.SourceEntry{ID: id, Text: text})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("category %q: %w", category, err)
	}
	return entries, nil
}

// openObject consumes '{' or a JSON null.
func openObject(dec *json.Decoder) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if tok == nil {
		return true, nil
	}
	if d, ok := tok.(json.Delim); ok && d == '{' {
		return false, nil
	}
	return false, fmt.Errorf("expected object, got %v", tok)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
