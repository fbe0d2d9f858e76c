package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bazario/bazario-backend/internal/orders"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

const orderNumberAttempts = 3

// generateOrderNumber builds an order number of the form
// ORD-20260829143015-1A2B3C from the UTC timestamp plus three random
// bytes rendered as uppercase hex.
func generateOrderNumber(now time.Time) (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}
	return fmt.Sprintf("ORD-%s-%s",
		now.UTC().Format("20060102150405"),
		strings.ToUpper(hex.EncodeToString(suffix)),
	), nil
}

// reserveOrderNumber generates candidates until one is unused. Collisions
// are vanishingly rare; exhausting every attempt is reported as a
// transient failure the client can retry.
func reserveOrderNumber(ctx context.Context, repo orders.Repository, now time.Time) (string, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		candidate, err := generateOrderNumber(now)
		if err != nil {
			return "", err
		}
		exists, err := repo.ExistsByOrderNumber(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, "could not allocate order number")
}
