package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"healthcert/internal/domain"
	"healthcert/internal/platform/config"
	"healthcert/pkg/platform/sentinel"
)

// Loader fetches a named rule configuration blob. Implementations must return
// configuration the engine can treat as read-only for the whole evaluation.
type Loader interface {
	FetchRuleConfiguration(ctx context.Context, container, filename string) (*domain.EligibilityConfiguration, error)
}

// BlobStore serves versioned, named configuration blobs.
type BlobStore interface {
	Get(ctx context.Context, container, filename string) ([]byte, error)
}

// Rule configuration filenames selected by feature-flag combinations.
const (
	FilenameBase              = "eligibility-rules.json"
	FilenameMandatory         = "eligibility-rules-mandatory.json"
	FilenameMandatoryBoosters = "eligibility-rules-mandatory-boosters.json"
)

// FilenameForFlags maps the feature-flag combination onto a blob name.
func FilenameForFlags(flags config.RuleFlags) string {
	switch {
	case flags.MandatoryOnly && flags.IncludeBoosters:
		return FilenameMandatoryBoosters
	case flags.MandatoryOnly:
		return FilenameMandatory
	}
	return FilenameBase
}

// BlobLoader parses rule configuration out of a blob store.
type BlobLoader struct {
	blobs BlobStore
}

// NewBlobLoader wraps a blob store.
func NewBlobLoader(blobs BlobStore) *BlobLoader {
	return &BlobLoader{blobs: blobs}
}

// FetchRuleConfiguration loads and parses one configuration blob. A missing or
// empty rule set is a configuration fault, never silently defaulted.
func (l *BlobLoader) FetchRuleConfiguration(ctx context.Context, container, filename string) (*domain.EligibilityConfiguration, error) {
	raw, err := l.blobs.Get(ctx, container, filename)
	if err != nil {
		return nil, fmt.Errorf("fetch rule configuration %s/%s: %w", container, filename, err)
	}
	var cfg domain.EligibilityConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse rule configuration %s/%s: %w", container, filename, err)
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("rule configuration %s/%s is empty: %w", container, filename, sentinel.ErrInvalidState)
	}
	return &cfg, nil
}
