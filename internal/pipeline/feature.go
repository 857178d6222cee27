package pipeline

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

// Feature is an analysis run over a job's normalized documents.
type Feature interface {
	Name() constants.Feature
	Run(ctx context.Context, docs []*document.Document) (Verdict, error)
}

type generalFeature struct{ auditor *Auditor }

func (generalFeature) Name() constants.Feature { return constants.FeatureGeneral }

// Run audits the first document; a general job carries one file.
func (f generalFeature) Run(ctx context.Context, docs []*document.Document) (Verdict, error) {
	if len(docs) == 0 {
		return Verdict{}, common.InputError("general audit needs a document")
	}
	return f.auditor.General(ctx, docs[0])
}

type crossCheckFeature struct{ auditor *Auditor }

func (crossCheckFeature) Name() constants.Feature { return constants.FeatureCrossCheck }

func (f crossCheckFeature) Run(ctx context.Context, docs []*document.Document) (Verdict, error) {
	if len(docs) != 2 {
		return Verdict{}, common.InputError(fmt.Sprintf("cross-check needs exactly two documents, got %d", len(docs)))
	}
	return f.auditor.Compare(ctx, docs[0], docs[1])
}

// Features resolves submitted selectors to analyses.
type Features struct {
	byName map[constants.Feature]Feature
}

// NewFeatures registers the general audit and the cross-check.
func NewFeatures(auditor *Auditor) *Features {
	fs := &Features{byName: make(map[constants.Feature]Feature)}
	for _, f := range []Feature{generalFeature{auditor}, crossCheckFeature{auditor}} {
		fs.byName[f.Name()] = f
	}
	return fs
}

// Resolve matches a selector case-insensitively after trimming. Anything
// else is an UnsupportedFeatureError.
func (fs *Features) Resolve(selector string) (Feature, error) {
	name, ok := constants.ParseFeature(selector)
	if !ok {
		return nil, common.UnsupportedFeatureError(selector)
	}
	f, ok := fs.byName[name]
	if !ok {
		return nil, common.UnsupportedFeatureError(selector)
	}
	return f, nil
}
