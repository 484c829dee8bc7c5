package educms

import (
	"context"
	"encoding/json"
)

// Site configuration operations

func (s *service) GetSiteConfig(ctx context.Context, key string) (*SiteConfig, error) {
	if !validSiteKey(key) {
		return nil, invalid("key")
	}
	return s.repository.GetSiteConfig(ctx, key)
}

func (s *service) SaveSiteConfig(ctx context.Context, key string, doc json.RawMessage) (*SiteConfig, error) {
	if !validSiteKey(key) {
		return nil, invalid("key")
	}
	if emptyDocument(doc) {
		return nil, missing("document")
	}
	if !json.Valid(doc) {
		return nil, invalid("document")
	}
	cfg := &SiteConfig{Key: key, Document: doc, UpdatedAt: s.now()}
	if err := s.repository.SaveSiteConfig(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.Info("Saved site config", "key", key)
	return cfg, nil
}

func validSiteKey(key string) bool {
	return key == SiteConfigHome || key == SiteConfigFooter
}
