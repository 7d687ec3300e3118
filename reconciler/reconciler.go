package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/internal/strtoken"
	"github.com/asifkhan0410/recallchat/ledger"
	"github.com/asifkhan0410/recallchat/mem0"
	"github.com/asifkhan0410/recallchat/thread"
)

type (
	// Reconciler attributes memory operations that happened outside a chat
	// turn (edits in the memory library) to the message that is actually
	// about them, by appending a second, real-anchored ledger entry. The
	// synthetic-anchored original stays untouched.
	Reconciler interface {
		Reconcile(ctx context.Context, userID, messageID, messageText string) (int, error)
	}

	Config struct {
		Window      time.Duration
		Threshold   float64
		MinTokenLen int
		SearchLimit int
	}

	reconciler struct {
		logger *mylog.Logger
		ledger ledger.Ledger
		client mem0.Client
		conf   Config
	}
)

var (
	_ Reconciler = (*reconciler)(nil)
)

func DefaultConfig() Config {
	return Config{
		Window:      24 * time.Hour,
		Threshold:   0.2,
		MinTokenLen: 3,
		SearchLimit: 10,
	}
}

func NewReconciler(logger *mylog.Logger, ledgerService ledger.Ledger, client mem0.Client, conf Config) Reconciler {
	if conf.Window <= 0 {
		conf = DefaultConfig()
	}
	return &reconciler{
		logger: logger,
		ledger: ledgerService,
		client: client,
		conf:   conf,
	}
}

// Reconcile is best-effort and additive: false positives and negatives are
// accepted, the attribution is explanatory rather than correctness-bearing.
func (r *reconciler) Reconcile(ctx context.Context, userID, messageID, messageText string) (int, error) {
	candidates, err := r.ledger.ReconciliationCandidates(ctx, userID, r.conf.Window)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load candidates")
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	queryTokens := strtoken.Tokens(messageText, r.conf.MinTokenLen)

	linked := 0
	for _, candidate := range candidates {
		relevant, oldContent, newContent := r.resolve(ctx, userID, messageText, queryTokens, candidate)
		if !relevant {
			continue
		}

		if _, err := r.ledger.Append(ctx, ledger.AppendEntry{
			MessageID:  messageID,
			Mem0ID:     candidate.Link.Mem0ID,
			Operation:  candidate.Link.Operation,
			OldContent: oldContent,
			NewContent: newContent,
		}); err != nil {
			r.logger.Warn("failed to append reconciled link", "mem0_id", candidate.Link.Mem0ID, "error", err)
			continue
		}
		linked++
	}

	return linked, nil
}

// resolve decides relevance and returns the content snapshots the new entry
// should carry. Snapshots come from the candidate itself when present, then
// from the anchor message body, and as a last resort are recorded empty.
func (r *reconciler) resolve(ctx context.Context, userID, messageText string, queryTokens []string, candidate ledger.Candidate) (bool, *string, *string) {
	oldContent, newContent := candidate.Link.OldContent, candidate.Link.NewContent
	if oldContent == nil && newContent == nil {
		if snapshot := parseSnapshot(candidate.AnchorContent); snapshot != nil {
			if snapshot.OldContent != "" {
				oldContent = &snapshot.OldContent
			}
			if snapshot.NewContent != "" {
				newContent = &snapshot.NewContent
			}
			if oldContent == nil && snapshot.MemoryContent != "" {
				oldContent = &snapshot.MemoryContent
			}
		}
	}

	switch candidate.Link.Operation {
	case entity.MemoryOperationDelete:
		if oldContent == nil || *oldContent == "" {
			// nothing to compare against, favor over-attribution
			empty := ""
			if oldContent == nil {
				oldContent = &empty
			}
			return true, oldContent, nil
		}
		return r.overlaps(queryTokens, *oldContent), oldContent, nil
	case entity.MemoryOperationUpdate:
		if oldContent == nil && newContent == nil {
			if !r.searchFallback(ctx, userID, messageText, candidate.Link.Mem0ID) {
				return false, nil, nil
			}
			empty := ""
			return true, &empty, &empty
		}
		if oldContent == nil {
			empty := ""
			oldContent = &empty
		}
		if newContent == nil {
			empty := ""
			newContent = &empty
		}
		if r.overlaps(queryTokens, *oldContent) || r.overlaps(queryTokens, *newContent) {
			return true, oldContent, newContent
		}
		return false, nil, nil
	default:
		return false, nil, nil
	}
}

func (r *reconciler) overlaps(queryTokens []string, content string) bool {
	contentTokens := strtoken.Tokens(content, r.conf.MinTokenLen)
	return strtoken.OverlapRatio(queryTokens, contentTokens) > r.conf.Threshold
}

// searchFallback checks whether the memory still surfaces for the current
// query. When even that probe fails, default to linking.
func (r *reconciler) searchFallback(ctx context.Context, userID, messageText, mem0ID string) bool {
	results, err := r.client.Search(ctx, messageText, mem0.SearchOptions{
		UserID: userID,
		Limit:  r.conf.SearchLimit,
	})
	if err != nil {
		r.logger.Warn("fallback search failed, linking by default", "mem0_id", mem0ID, "error", err)
		return true
	}

	for _, result := range results {
		if result.ID == mem0ID {
			return true
		}
	}
	return false
}

func parseSnapshot(content string) *thread.AnchorSnapshot {
	var snapshot thread.AnchorSnapshot
	if err := json.Unmarshal([]byte(content), &snapshot); err != nil {
		return nil
	}
	return &snapshot
}
