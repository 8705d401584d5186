package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// FileProvider serves quotes from a JSON file holding an array of
// {symbol, name, price, changesPercentage} objects. The file is read on
// first use and cached for the life of the provider.
type FileProvider struct {
	path string

	mu     sync.Mutex
	loaded bool
	list   []model.Quote
	index  map[string]int
}

// NewFileProvider creates a provider backed by the file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) load() error {
	if p.loaded {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read quotes file: %w", err)
	}
	var list []model.Quote
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode quotes file: %w", err)
	}

	p.index = make(map[string]int, len(list))
	for i := range list {
		list[i].Symbol = normalize(list[i].Symbol)
		p.index[list[i].Symbol] = i
	}
	p.list = list
	p.loaded = true
	return nil
}

func (p *FileProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return nil, err
	}
	i, ok := p.index[normalize(symbol)]
	if !ok {
		return nil, ErrNoQuote
	}
	q := p.list[i]
	return &q, nil
}

func (p *FileProvider) All(_ context.Context) ([]model.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return nil, err
	}
	out := make([]model.Quote, len(p.list))
	copy(out, p.list)
	return out, nil
}
