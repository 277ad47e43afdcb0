package op

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// refundWindow is how long after purchase a refund stays available.
const refundWindow = 30 * 24 * time.Hour

// RefundMtxPurchase reverses a premium-currency purchase: the spent
// currency comes back, the granted items are removed from whichever
// profiles received them, and one refund credit is consumed.
func RefundMtxPurchase(ctx context.Context, c *Context) error {
	var body struct {
		PurchaseID string `json:"purchaseId"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.PurchaseID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "purchaseId is required")
	}

	core, coreLog, err := c.target(ctx, profile.NamespaceCommonCore)
	if err != nil {
		return err
	}

	history := core.MtxPurchaseHistory()
	credits := intValue(history["refundCredits"])
	if credits <= 0 {
		return apperrors.New(apperrors.CodeNoRefundCreditsLeft, "no refund credits left")
	}

	purchases, _ := history["purchases"].([]any)
	var purchase map[string]any
	for _, entry := range purchases {
		record, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if stringValue(record["purchaseId"]) == body.PurchaseID {
			purchase = record
			break
		}
	}
	if purchase == nil {
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("purchase %s not found", body.PurchaseID),
			map[string]string{"purchaseId": body.PurchaseID})
	}

	if stringValue(purchase["refundDate"]) != "" {
		return apperrors.New(apperrors.CodeAlreadyRefunded,
			fmt.Sprintf("purchase %s already refunded", body.PurchaseID))
	}

	now := c.Env.Clock()
	purchaseDate, err := time.Parse(time.RFC3339, stringValue(purchase["purchaseDate"]))
	if err != nil || now.Sub(purchaseDate) > refundWindow {
		return apperrors.New(apperrors.CodeRefundPeriodExpired,
			fmt.Sprintf("purchase %s is outside the refund window", body.PurchaseID))
	}

	if err := adjustMtx(core, coreLog, intValue(purchase["totalMtxPaid"])); err != nil {
		return err
	}

	lootResult, _ := purchase["lootResult"].([]any)
	for _, entry := range lootResult {
		granted, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		itemGuid := stringValue(granted["itemGuid"])
		if itemGuid == "" {
			continue
		}
		target, log, err := c.target(ctx, stringValue(granted["itemProfile"]))
		if err != nil {
			return err
		}
		if target.Item(itemGuid) == nil {
			continue
		}
		delete(target.Items, itemGuid)
		log.Append(change.ItemRemoved(itemGuid))
	}

	purchase["refundDate"] = now.UTC().Format(time.RFC3339)
	history["refundCredits"] = credits - 1
	history["refundsUsed"] = intValue(history["refundsUsed"]) + 1
	coreLog.Append(change.StatModified("mtx_purchase_history", history))
	return nil
}
