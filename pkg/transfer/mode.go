package transfer

import (
	"archivesync/pkg/models"
)

// SelectMode picks the transfer strategy for a run. An explicit mode wins
// unchanged. Auto resolves to traditional when no remote-to-remote target is
// configured; otherwise it counts the fraction of requests sourced from the
// archive's object store and picks direct_sync at 80% or above. The decision
// is made once per run and never re-evaluated mid-run.
func SelectMode(configured models.OperationMode, directSyncAvailable bool, requests []models.TransferRequest) models.OperationMode {
	switch configured {
	case models.ModeDirectSync, models.ModeTraditional:
		return configured
	}

	if !directSyncAvailable {
		return models.ModeTraditional
	}

	if len(requests) == 0 {
		return models.ModeTraditional
	}

	remote := 0
	for _, req := range requests {
		if req.SourceURI != "" {
			remote++
		}
	}

	if float64(remote)/float64(len(requests)) >= 0.8 {
		return models.ModeDirectSync
	}
	return models.ModeTraditional
}
