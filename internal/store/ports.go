package store

import (
	"context"

	"txview/internal/core"
)

// Ports for the collaborator transaction store.
type (
	// TransactionLister reads the full transaction collection.
	TransactionLister interface {
		List(ctx context.Context) ([]core.Transaction, error)
	}

	// TransactionCreator persists a new transaction and returns the stored
	// representation, including the id the store assigned.
	TransactionCreator interface {
		Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
	}

	TransactionDeleter interface {
		Delete(ctx context.Context, id core.ID) error
	}

	Store interface {
		TransactionLister
		TransactionCreator
		TransactionDeleter
	}
)
