package policy

import (
	"context"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// CatalogOracle answers from the Registry without any network call.
// Anything it does not recognise is STUDY.
type CatalogOracle struct {
	registry *Registry
}

// NewCatalogOracle creates an oracle over registry.
func NewCatalogOracle(registry *Registry) *CatalogOracle {
	return &CatalogOracle{registry: registry}
}

func (o *CatalogOracle) Name() string {
	return "catalog"
}

// Classify never fails unless ctx is already done.
func (o *CatalogOracle) Classify(ctx context.Context, req domain.OracleRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, ok := o.registry.Match(req.WindowTitle, req.ProcessName); ok {
		return string(domain.VerdictDistraction), nil
	}
	return string(domain.VerdictStudy), nil
}

var _ domain.Oracle = (*CatalogOracle)(nil)
