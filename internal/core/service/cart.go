package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/port"
)

// reserveWithFallback reserves qty units of productID, trying the requested
// size first and then the fallback sizes. It returns the size that was
// reserved. Nothing is reserved when an error is returned.
func reserveWithFallback(ctx context.Context, ledger port.InventoryLedger, productID string, size domain.Size, qty int) (domain.Size, error) {
	if qty <= 0 {
		return "", ErrInvalidQuantity
	}
	if size == "" {
		size = domain.DefaultSize
	}

	sizes := make([]domain.Size, 0, len(domain.FallbackSizes)+1)
	sizes = append(sizes, size)
	for _, alt := range domain.FallbackSizes {
		if alt != size {
			sizes = append(sizes, alt)
		}
	}

	for _, s := range sizes {
		ok, err := ledger.Reserve(ctx, productID, s, qty)
		if err != nil {
			return "", fmt.Errorf("reserve %s/%s: %w", productID, s, err)
		}
		if ok {
			return s, nil
		}
	}
	return "", ErrInventoryExhausted
}

// addToCart reserves stock and appends the cart line. The caller must hold
// the session lock. If the turn is cancelled between the reservation and the
// append, the reservation is released and the cart is left untouched.
func addToCart(ctx context.Context, ledger port.InventoryLedger, sess *domain.Session, productID string, size domain.Size, qty int, now time.Time) (domain.CartLine, error) {
	reserved, err := reserveWithFallback(ctx, ledger, productID, size, qty)
	if err != nil {
		return domain.CartLine{}, err
	}

	if err := ctx.Err(); err != nil {
		if rerr := ledger.Release(context.WithoutCancel(ctx), productID, reserved, qty); rerr != nil {
			return domain.CartLine{}, fmt.Errorf("release after cancel: %w", rerr)
		}
		return domain.CartLine{}, err
	}

	line := domain.CartLine{
		ProductID: productID,
		Size:      reserved,
		Quantity:  qty,
		AddedAt:   now,
	}
	sess.Cart = append(sess.Cart, line)
	return line, nil
}

// releaseLines returns every line's units to the ledger. It keeps going past
// individual failures and reports the lines that were released.
func releaseLines(ctx context.Context, ledger port.InventoryLedger, lines []domain.CartLine) ([]domain.CartLine, error) {
	ctx = context.WithoutCancel(ctx)
	released := make([]domain.CartLine, 0, len(lines))
	var firstErr error
	for _, l := range lines {
		if err := ledger.Release(ctx, l.ProductID, l.Size, l.Quantity); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("release %s/%s: %w", l.ProductID, l.Size, err)
			}
			continue
		}
		released = append(released, l)
	}
	return released, firstErr
}

// reserveLines reserves every line at its exact size, all or nothing.
func reserveLines(ctx context.Context, ledger port.InventoryLedger, lines []domain.CartLine) error {
	for i, l := range lines {
		ok, err := ledger.Reserve(ctx, l.ProductID, l.Size, l.Quantity)
		if err == nil && !ok {
			err = ErrInventoryExhausted
		}
		if err != nil {
			_, _ = releaseLines(ctx, ledger, lines[:i])
			return err
		}
	}
	return nil
}

func releasedActions(lines []domain.CartLine) []domain.Action {
	actions := make([]domain.Action, 0, len(lines))
	for _, l := range lines {
		actions = append(actions, domain.Action{
			Type:      domain.ActionInventoryReleased,
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  l.Quantity,
		})
	}
	return actions
}
