package tryon

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/imaging"
	"virtual-tryon-backend/internal/models"
)

const cleanupTimeout = 10 * time.Second

// Persister writes result bytes and then the ledger row that points at them.
type Persister struct {
	store  ByteStore
	ledger ResultLedger
}

func NewPersister(store ByteStore, ledger ResultLedger) *Persister {
	return &Persister{store: store, ledger: ledger}
}

// ResultFilename returns a fresh collision-resistant storage name such as
// 9f0c...e1_result.png.
func ResultFilename(mimeType string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token + "_result." + imaging.ExtensionFor(mimeType)
}

// Save stores the result and records it. If the ledger write fails the
// stored object is removed so no orphan is left behind.
func (p *Persister) Save(ctx context.Context, req Request, result *models.SynthesisResult) (*models.ResultRecord, error) {
	log := zerolog.Ctx(ctx)

	if err := p.store.Store(ctx, models.CategoryResult, result.SuggestedFilename, result.Data, result.MIMEType); err != nil {
		return nil, newError(KindPersistence, StagePersist, "failed to store result image", err)
	}

	record, err := p.ledger.RecordResult(ctx, req.UserID, req.PersonPhotoID, req.GarmentPhotoID, result.SuggestedFilename)
	if err != nil {
		// The request ctx is often what failed the ledger write.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if delErr := p.store.Delete(cleanupCtx, models.CategoryResult, result.SuggestedFilename); delErr != nil {
			log.Warn().Err(delErr).Str("filename", result.SuggestedFilename).Msg("failed to remove orphaned result image")
		}
		return nil, newError(KindPersistence, StagePersist, "failed to record result", err)
	}

	return record, nil
}
