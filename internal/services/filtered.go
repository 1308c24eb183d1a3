package services

import (
	"context"

	"github.com/jwebster45206/drama-high/pkg/state"
	"github.com/jwebster45206/drama-high/pkg/textfilter"
)

// FilteredGenerator cleans everything another generator returns before the
// player sees it. Art prompts are cleaned on the way out.
type FilteredGenerator struct {
	next   Generator
	filter *textfilter.Filter
}

var _ Generator = (*FilteredGenerator)(nil)

func NewFilteredGenerator(next Generator, filter *textfilter.Filter) *FilteredGenerator {
	return &FilteredGenerator{next: next, filter: filter}
}

func (f *FilteredGenerator) RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	unit, err := f.next.RequestTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	f.filter.CleanTurn(unit)
	return unit, nil
}

func (f *FilteredGenerator) RequestInsight(ctx context.Context, narrative string) (string, error) {
	text, err := f.next.RequestInsight(ctx, narrative)
	if err != nil {
		return "", err
	}
	return f.filter.Clean(text), nil
}

func (f *FilteredGenerator) RequestArt(ctx context.Context, prompt string) (string, error) {
	return f.next.RequestArt(ctx, f.filter.Clean(prompt))
}
