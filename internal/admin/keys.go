package admin

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/store"
)

// TransferKeyStores rewraps every merchant key store currently wrapped by
// from so that it is wrapped by to. Key stores of other wrappers are left
// alone. It stops at the first failure.
func (s *Service) TransferKeyStores(ctx context.Context, from, to string) (total int, err error) {
	defer s.track("key_store_transfer", time.Now(), &err)

	if _, ok := s.keys.Wrapper(from); !ok {
		return 0, apperr.InvalidDataValue("from")
	}
	target, ok := s.keys.Wrapper(to)
	if !ok {
		return 0, apperr.InvalidDataValue("to")
	}
	if from == to {
		return 0, nil
	}

	stores, err := s.store.ListMerchantKeyStores(ctx)
	if err != nil {
		return 0, apperr.Internal("failed to list merchant key stores", err)
	}

	var transferred atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultKeyTransferWorkers)
	for _, ks := range stores {
		if ks.Wrapper != from {
			continue
		}
		g.Go(func() error {
			rewrapped, err := s.keys.Rewrap(gctx, keymanager.KeyStore{Wrapper: ks.Wrapper, WrappedKey: ks.WrappedKey}, target)
			if err != nil {
				return fmt.Errorf("merchant %s: %w", ks.MerchantID, err)
			}
			ks.Wrapper = rewrapped.Wrapper
			ks.WrappedKey = rewrapped.WrappedKey
			if _, err := s.store.UpdateMerchantKeyStore(gctx, ks); err != nil {
				return fmt.Errorf("merchant %s: %w", ks.MerchantID, err)
			}
			transferred.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(transferred.Load()), apperr.Internal("failed to transfer merchant key stores", err)
	}
	s.logger.Info("merchant key stores transferred", "from", from, "to", to, "total_transferred", transferred.Load())
	return int(transferred.Load()), nil
}

func keyStoreRecord(merchantID string, ks keymanager.KeyStore, at time.Time) store.MerchantKeyStore {
	return store.MerchantKeyStore{MerchantID: merchantID, Wrapper: ks.Wrapper, WrappedKey: ks.WrappedKey, CreatedAt: at}
}
