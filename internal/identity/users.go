package identity

import (
	"context"
	"log"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/records"
)

// DocumentUsers keeps accounts in the "users" collection of the document store.
type DocumentUsers struct {
	store docstore.Store
}

func NewDocumentUsers(store docstore.Store) *DocumentUsers {
	return &DocumentUsers{store: store}
}

func (u *DocumentUsers) FindUserByEmail(ctx context.Context, email string) (domain.UserAccount, error) {
	recs, err := u.store.List(ctx, docstore.Query{
		Collection: records.CollectionUsers,
		Where:      []docstore.Filter{{Field: "email", Value: email}},
		OrderBy:    records.FieldCreatedAt,
	})
	if err != nil {
		return domain.UserAccount{}, err
	}
	for _, rec := range recs {
		user, err := records.DecodeUser(rec)
		if err != nil {
			log.Printf("[identity] WARN: skipping malformed user record: %v", err)
			continue
		}
		return user, nil
	}
	return domain.UserAccount{}, ErrUserNotFound
}

func (u *DocumentUsers) CreateUser(ctx context.Context, user domain.UserAccount) (domain.UserAccount, error) {
	id, err := u.store.Create(ctx, records.CollectionUsers, records.UserFields(user))
	if err != nil {
		return domain.UserAccount{}, err
	}
	user.ID = id
	return user, nil
}
