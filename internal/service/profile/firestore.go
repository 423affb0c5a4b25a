package profile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
)

// DefaultCollection is the default profile collection name.
const DefaultCollection = "users"

// firestoreProfile maps to the Firestore document structure.
type firestoreProfile struct {
	UID         string         `firestore:"uid"`
	Email       string         `firestore:"email"`
	DisplayName string         `firestore:"displayName"`
	PhotoURL    *string        `firestore:"photoURL"`
	CreatedAt   time.Time      `firestore:"createdAt,serverTimestamp"`
	LastLoginAt time.Time      `firestore:"lastLoginAt,serverTimestamp"`
	Preferences map[string]any `firestore:"preferences,omitempty"`
	Metadata    map[string]any `firestore:"metadata,omitempty"`
}

func (fp *firestoreProfile) toProfile() *Profile {
	return &Profile{
		UID:         fp.UID,
		Email:       fp.Email,
		DisplayName: fp.DisplayName,
		PhotoURL:    fp.PhotoURL,
		CreatedAt:   fp.CreatedAt,
		LastLoginAt: fp.LastLoginAt,
		Preferences: fp.Preferences,
		Metadata:    fp.Metadata,
	}
}

// FirestoreRepository implements Repository using Firestore.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository creates a repository over collection, or
// DefaultCollection when collection is empty.
func NewFirestoreRepository(client *firestore.Client, collection string) *FirestoreRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreRepository{client: client, collection: collection}
}

func (r *FirestoreRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(userID)
}

// Get retrieves a profile by user ID.
func (r *FirestoreRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	snap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	var fp firestoreProfile
	if err := snap.DataTo(&fp); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	p := fp.toProfile()
	if p.UID == "" {
		p.UID = userID
	}
	return p, nil
}

// Create stores a new profile. Zero timestamps are assigned by the server.
func (r *FirestoreRepository) Create(ctx context.Context, p *Profile) (*Profile, error) {
	fp := firestoreProfile{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Preferences: p.Preferences,
		Metadata:    p.Metadata,
	}

	wr, err := r.doc(p.UID).Create(ctx, fp)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			err = ErrAlreadyExists
		} else {
			err = fmt.Errorf("creating profile: %w", err)
		}
		applog.LogAuditEvent(ctx, "create", p.UID, "profile", p.UID, applog.AuditFailure,
			map[string]any{"error": categorizeError(err)})
		return nil, err
	}

	applog.LogAuditEvent(ctx, "create", p.UID, "profile", p.UID, applog.AuditSuccess, nil)

	created := *p
	created.CreatedAt = wr.UpdateTime
	created.LastLoginAt = wr.UpdateTime
	return &created, nil
}

// Update applies a partial update. Preference and metadata keys are written
// individually so that unrelated keys are kept.
func (r *FirestoreRepository) Update(ctx context.Context, userID string, params UpdateParams) error {
	updates := updatesFor(params)
	if len(updates) == 0 {
		return nil
	}

	if _, err := r.doc(userID).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			err = ErrNotFound
		} else {
			err = fmt.Errorf("updating profile: %w", err)
		}
		applog.LogAuditEvent(ctx, "update", userID, "profile", userID, applog.AuditFailure,
			map[string]any{"error": categorizeError(err)})
		return err
	}

	applog.LogAuditEvent(ctx, "update", userID, "profile", userID, applog.AuditSuccess, nil)
	return nil
}

func updatesFor(params UpdateParams) []firestore.Update {
	var updates []firestore.Update
	if params.Email != nil {
		updates = append(updates, firestore.Update{Path: "email", Value: *params.Email})
	}
	if params.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "displayName", Value: *params.DisplayName})
	}
	if params.PhotoURL != nil {
		var v any
		if *params.PhotoURL != "" {
			v = *params.PhotoURL
		}
		updates = append(updates, firestore.Update{Path: "photoURL", Value: v})
	}
	for k, v := range params.Preferences {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"preferences", k}, Value: v})
	}
	for k, v := range params.Metadata {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"metadata", k}, Value: v})
	}
	return updates
}

// TouchLastLogin sets lastLoginAt to the server time.
func (r *FirestoreRepository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.doc(userID).Update(ctx, []firestore.Update{
		{Path: "lastLoginAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// Delete removes the profile document.
func (r *FirestoreRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.doc(userID).Delete(ctx); err != nil {
		applog.LogAuditEvent(ctx, "delete", userID, "profile", userID, applog.AuditFailure,
			map[string]any{"error": categorizeError(err)})
		return fmt.Errorf("deleting profile: %w", err)
	}
	applog.LogAuditEvent(ctx, "delete", userID, "profile", userID, applog.AuditSuccess, nil)
	return nil
}

// Compile-time interface check
var _ Repository = (*FirestoreRepository)(nil)
