package op

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// SetItemFavoriteStatus toggles the favorite flag on a single item.
// Unlike the batch variant, a missing item is an error here.
func SetItemFavoriteStatus(ctx context.Context, c *Context) error {
	var body struct {
		TargetItemID *string `json:"targetItemId"`
		Favorite     *bool   `json:"bFav"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.TargetItemID == nil || body.Favorite == nil {
		return apperrors.New(apperrors.CodeInvalidPayload, "targetItemId and bFav are required")
	}

	item := c.Profile.Item(*body.TargetItemID)
	if item == nil {
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("item %s not found", *body.TargetItemID),
			map[string]string{"itemId": *body.TargetItemID})
	}

	item.Attributes["favorite"] = *body.Favorite
	c.Log.Append(change.ItemAttrChanged(*body.TargetItemID, "favorite", *body.Favorite))
	return nil
}

// SetItemFavoriteStatusBatch toggles favorite flags on many items at once.
// Entries whose item id does not exist are silently skipped: the batch is a
// partial-success operation, not an atomic one.
func SetItemFavoriteStatusBatch(ctx context.Context, c *Context) error {
	var body struct {
		ItemIDs       []string `json:"itemIds"`
		ItemFavStatus []bool   `json:"itemFavStatus"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if len(body.ItemIDs) == 0 || len(body.ItemIDs) != len(body.ItemFavStatus) {
		return apperrors.New(apperrors.CodeInvalidPayload, "itemIds and itemFavStatus must be non-empty and the same length")
	}

	for i, itemID := range body.ItemIDs {
		item := c.Profile.Item(itemID)
		if item == nil {
			continue
		}
		item.Attributes["favorite"] = body.ItemFavStatus[i]
		c.Log.Append(change.ItemAttrChanged(itemID, "favorite", body.ItemFavStatus[i]))
	}
	return nil
}

// MarkItemSeen clears the "new" badge on items. Missing ids are skipped.
func MarkItemSeen(ctx context.Context, c *Context) error {
	var body struct {
		ItemIDs []string `json:"itemIds"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if len(body.ItemIDs) == 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "itemIds is required")
	}

	for _, itemID := range body.ItemIDs {
		item := c.Profile.Item(itemID)
		if item == nil {
			continue
		}
		item.Attributes["item_seen"] = true
		c.Log.Append(change.ItemAttrChanged(itemID, "item_seen", true))
	}
	return nil
}

// SetItemArchivedStatusBatch archives or unarchives items. Missing ids are
// skipped.
func SetItemArchivedStatusBatch(ctx context.Context, c *Context) error {
	var body struct {
		ItemIDs  []string `json:"itemIds"`
		Archived *bool    `json:"archived"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if len(body.ItemIDs) == 0 || body.Archived == nil {
		return apperrors.New(apperrors.CodeInvalidPayload, "itemIds and archived are required")
	}

	for _, itemID := range body.ItemIDs {
		item := c.Profile.Item(itemID)
		if item == nil {
			continue
		}
		item.Attributes["archived"] = *body.Archived
		c.Log.Append(change.ItemAttrChanged(itemID, "archived", *body.Archived))
	}
	return nil
}
