package statement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"lmsledger/internal/db"
	"lmsledger/internal/logger"
	"lmsledger/internal/payment"
	"lmsledger/internal/user"
	"lmsledger/internal/wallet"
)

type Service interface {
	WalletStatement(ctx context.Context, walletID uuid.UUID, f Filter) (*Page[WalletLine], error)
	UserStatement(ctx context.Context, userID uuid.UUID, f Filter) (*Page[UserLine], error)
}

type service struct {
	repo    Repository
	wallets wallet.Repository
	reader  db.Querier
	users   user.Repository
}

func NewService(repo Repository, wallets wallet.Repository, reader db.Querier, users user.Repository) Service {
	return &service{
		repo:    repo,
		wallets: wallets,
		reader:  reader,
		users:   users,
	}
}

func validate(f *Filter) error {
	if err := f.normalize(); err != nil {
		return err
	}
	if f.Status != "" && !payment.Status(f.Status).Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	if f.Reason != "" && !payment.Reason(f.Reason).Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidFilter, f.Reason)
	}
	return nil
}

func (s *service) WalletStatement(ctx context.Context, walletID uuid.UUID, f Filter) (*Page[WalletLine], error) {
	if err := validate(&f); err != nil {
		return nil, err
	}
	if _, err := s.wallets.GetByID(ctx, s.reader, walletID); err != nil {
		return nil, err
	}

	lines, total, err := s.repo.WalletLines(ctx, walletID, f)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, l := range lines {
		if l.CounterpartyID != nil {
			ids = append(ids, *l.CounterpartyID)
		}
	}
	names := s.displayNames(ctx, ids)
	for i := range lines {
		if lines[i].CounterpartyID != nil {
			lines[i].CounterpartyName = names[*lines[i].CounterpartyID]
		}
	}

	return &Page[WalletLine]{Items: lines, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *service) UserStatement(ctx context.Context, userID uuid.UUID, f Filter) (*Page[UserLine], error) {
	if err := validate(&f); err != nil {
		return nil, err
	}

	lines, total, err := s.repo.UserLines(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.CounterpartyID)
	}
	names := s.displayNames(ctx, ids)
	for i := range lines {
		lines[i].CounterpartyName = names[lines[i].CounterpartyID]
	}

	return &Page[UserLine]{Items: lines, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// displayNames never fails the statement; unnamed counterparties render by id.
func (s *service) displayNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	if s.users == nil || len(ids) == 0 {
		return map[uuid.UUID]string{}
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	names, err := s.users.DisplayNames(ctx, unique)
	if err != nil {
		logger.Warn("failed to resolve statement display names", "count", len(unique), "error", err)
		return map[uuid.UUID]string{}
	}
	return names
}
