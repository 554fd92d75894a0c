package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
)

// Sentinel errors returned by PubkeyStore implementations.
var (
	// ErrPubkeyNotFound indicates no key exists with the requested id or nickname.
	ErrPubkeyNotFound = errors.New("pubkey not found")

	// ErrNicknameTaken indicates another key already uses the nickname.
	ErrNicknameTaken = errors.New("pubkey nickname already exists")
)

// PubkeyStore defines the driven port for key pair persistence. Only the
// persisted state of a model.Pubkey is stored; returned records are locked.
type PubkeyStore interface {
	// Create inserts a new key and assigns its id on the passed record.
	Create(ctx context.Context, key *model.Pubkey) error

	// Update overwrites every persisted field of an existing key.
	Update(ctx context.Context, key *model.Pubkey) error

	GetByID(ctx context.Context, id int64) (*model.Pubkey, error)
	GetByNickname(ctx context.Context, nickname string) (*model.Pubkey, error)

	// ListAll returns every key ordered by nickname.
	ListAll(ctx context.Context) ([]*model.Pubkey, error)

	// ListStartup returns keys flagged for unlocking at process start.
	ListStartup(ctx context.Context) ([]*model.Pubkey, error)

	Delete(ctx context.Context, id int64) error
}
