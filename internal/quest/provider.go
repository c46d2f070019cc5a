package quest

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrQuestNotFound indicates no content exists for the requested region.
var ErrQuestNotFound = errors.New("quest not found")

// ContentProvider supplies quest content for a region.
type ContentProvider interface {
	Quest(ctx context.Context, regionID string) (Quest, error)
}

//go:embed quests.yaml
var defaultQuests []byte

// StaticProvider serves quests from an in-memory table.
type StaticProvider struct {
	quests map[string]Quest
}

// NewStaticProvider returns a provider backed by the built-in quest content.
func NewStaticProvider() (*StaticProvider, error) {
	return ParseStatic(defaultQuests)
}

// ParseStatic decodes a YAML document keyed by region ID. Every quest is validated.
func ParseStatic(data []byte) (*StaticProvider, error) {
	var raw map[string]Quest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode quests: %w", err)
	}
	quests := make(map[string]Quest, len(raw))
	for regionID, q := range raw {
		q.Region = regionID
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("quest %q: %w", regionID, err)
		}
		quests[regionID] = q
	}
	return &StaticProvider{quests: quests}, nil
}

// Quest returns a copy of the region's quest.
func (p *StaticProvider) Quest(_ context.Context, regionID string) (Quest, error) {
	q, ok := p.quests[regionID]
	if !ok {
		return Quest{}, fmt.Errorf("%w: %s", ErrQuestNotFound, regionID)
	}
	out := q
	out.Challenges = append([]Challenge(nil), q.Challenges...)
	return out, nil
}

// Regions lists the region IDs that have content, sorted.
func (p *StaticProvider) Regions() []string {
	ids := make([]string, 0, len(p.quests))
	for id := range p.quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
