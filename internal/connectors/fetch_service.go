package connectors

import (
	"context"
	"fmt"

	"billops/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStore
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDir string, connector MailConnector) *FetchService {
	return &FetchService{connector: connector, store: NewMailStore(db, rawDir)}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	stored := 0
	for _, msg := range messages {
		if _, err := s.store.Store(msg); err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		stored++
	}
	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
