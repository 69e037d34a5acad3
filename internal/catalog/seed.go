package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/donutsmp/farmbot/internal/domain"
)

// The seed document is a mapping of category name -> farm id -> entry:
//
//	crop:
//	  cactus1:
//	    name: Cactus Farm
//	    income: 2.5
//
// Decoding walks yaml.Node directly so document order survives; a plain
// map would shuffle categories and farm ids.
type seedEntry struct {
	Name   string  `yaml:"name"`
	Income float64 `yaml:"income"`
}

// LoadDocument parses a catalog seed document, preserving document order.
func LoadDocument(r io.Reader) ([]domain.Category, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog document: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("catalog document: unexpected document structure")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errors.New("catalog document: top level must be a mapping of categories")
	}

	var categories []domain.Category
	for i := 0; i+1 < len(top.Content); i += 2 {
		keyNode, valNode := top.Content[i], top.Content[i+1]
		if keyNode.Value == "" {
			return nil, fmt.Errorf("catalog document: empty category name at line %d", keyNode.Line)
		}
		if valNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("catalog document: category %q must map farm ids to entries", keyNode.Value)
		}

		cat := domain.Category{Name: keyNode.Value}
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			idNode, entryNode := valNode.Content[j], valNode.Content[j+1]

			var entry seedEntry
			if err := entryNode.Decode(&entry); err != nil {
				return nil, fmt.Errorf("catalog document: farm %q in %q: %w", idNode.Value, keyNode.Value, err)
			}
			if entry.Income < 0 {
				return nil, fmt.Errorf("catalog document: farm %q in %q: income must be non-negative", idNode.Value, keyNode.Value)
			}
			cat.Farms = append(cat.Farms, domain.FarmEntry{
				ID:     idNode.Value,
				Name:   entry.Name,
				Income: entry.Income,
			})
		}
		categories = append(categories, cat)
	}

	return categories, nil
}

// Import upserts every entry of a seed document into the store, in document
// order. It returns the number of farms written.
func Import(ctx context.Context, store Store, r io.Reader) (int, error) {
	categories, err := LoadDocument(r)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, cat := range categories {
		for _, farm := range cat.Farms {
			if err := store.Upsert(ctx, cat.Name, farm.ID, farm.Name, farm.Income); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
