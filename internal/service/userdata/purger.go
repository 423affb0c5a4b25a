// Package userdata removes the documents an account owns when the account
// is deleted.
package userdata

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
)

// OwnerField is the document field holding the owning user's ID.
const OwnerField = "uid"

// ErrUserIDRequired is returned when Purge is called without a user ID.
var ErrUserIDRequired = errors.New("user ID is required")

// ProfileDeleter deletes a user's profile document.
type ProfileDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// FirestorePurger deletes a user's profile and, for each configured
// collection, the document keyed by the user ID plus every document whose
// OwnerField equals it.
type FirestorePurger struct {
	client      *firestore.Client
	profiles    ProfileDeleter
	collections []string
}

// NewFirestorePurger creates a purger. client may be nil when collections is empty.
func NewFirestorePurger(client *firestore.Client, profiles ProfileDeleter, collections []string) *FirestorePurger {
	return &FirestorePurger{client: client, profiles: profiles, collections: collections}
}

// Purge deletes everything owned by userID. Deleting data that does not
// exist succeeds.
func (p *FirestorePurger) Purge(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	deleted, err := p.purgeCollections(ctx, userID)
	if err != nil {
		applog.LogAuditEvent(ctx, "purge", userID, "user_data", userID, applog.AuditFailure,
			map[string]any{"deleted": deleted})
		return err
	}

	if p.profiles != nil {
		if err := p.profiles.Delete(ctx, userID); err != nil {
			applog.LogAuditEvent(ctx, "purge", userID, "user_data", userID, applog.AuditFailure,
				map[string]any{"deleted": deleted})
			return fmt.Errorf("deleting profile: %w", err)
		}
	}

	applog.LogAuditEvent(ctx, "purge", userID, "user_data", userID, applog.AuditSuccess,
		map[string]any{"deleted": deleted, "collections": len(p.collections)})
	return nil
}

func (p *FirestorePurger) purgeCollections(ctx context.Context, userID string) (int, error) {
	if len(p.collections) == 0 {
		return 0, nil
	}
	if p.client == nil {
		return 0, errors.New("firestore client is required to purge collections")
	}

	refs := map[string]*firestore.DocumentRef{}
	for _, name := range p.collections {
		col := p.client.Collection(name)
		keyed := col.Doc(userID)
		refs[keyed.Path] = keyed

		snaps, err := col.Where(OwnerField, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			return 0, fmt.Errorf("querying %s: %w", name, err)
		}
		for _, snap := range snaps {
			refs[snap.Ref.Path] = snap.Ref
		}
	}

	bw := p.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queueing delete of %s: %w", ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		applog.LogWarn(ctx, "user data purge incomplete",
			zap.String("userId", userID), zap.Int("failed", len(errs)))
		return len(jobs) - len(errs), fmt.Errorf("deleting user data: %w", errors.Join(errs...))
	}
	return len(jobs), nil
}
