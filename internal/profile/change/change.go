// Package change builds the canonical change records a mutation produces.
//
// Records describe mutations already applied to the in-memory profile;
// constructors never mutate their inputs. The order records are appended in
// is the order the response carries them.
package change

import (
	"encoding/json"

	"github.com/louisbranch/homebase/internal/profile"
)

// Type discriminates change records on the wire.
type Type string

const (
	// TypeItemAdded records a new item entering the profile.
	TypeItemAdded Type = "itemAdded"
	// TypeItemRemoved records an item leaving the profile.
	TypeItemRemoved Type = "itemRemoved"
	// TypeItemAttrChanged records a single attribute write on an item.
	TypeItemAttrChanged Type = "itemAttrChanged"
	// TypeItemQuantityChanged records a quantity/balance change.
	TypeItemQuantityChanged Type = "itemQuantityChanged"
	// TypeStatModified records a profile stat write.
	TypeStatModified Type = "statModified"
	// TypeFullProfileUpdate carries a whole-document snapshot when the
	// client must resync.
	TypeFullProfileUpdate Type = "fullProfileUpdate"
)

// Record is one atomic, typed description of a profile mutation.
type Record struct {
	Type Type

	// ItemID is set for all item-scoped records.
	ItemID string
	// Item is a snapshot copy for itemAdded records.
	Item *profile.Item
	// AttributeName/AttributeValue are set for itemAttrChanged records.
	AttributeName  string
	AttributeValue any
	// Quantity is set for itemQuantityChanged records.
	Quantity int
	// Name/Value are set for statModified records.
	Name  string
	Value any
	// Profile is set for fullProfileUpdate records.
	Profile *profile.Profile
}

// ItemAdded builds a record for an item that was added. The item is copied so
// later mutation of the profile cannot rewrite history.
func ItemAdded(itemID string, item *profile.Item) Record {
	return Record{Type: TypeItemAdded, ItemID: itemID, Item: item.Clone()}
}

// ItemRemoved builds a record for an item that was removed.
func ItemRemoved(itemID string) Record {
	return Record{Type: TypeItemRemoved, ItemID: itemID}
}

// ItemAttrChanged builds a record for an attribute write. The value is
// deep-copied so later writes to a shared map cannot rewrite history.
func ItemAttrChanged(itemID, attributeName string, attributeValue any) Record {
	return Record{
		Type:           TypeItemAttrChanged,
		ItemID:         itemID,
		AttributeName:  attributeName,
		AttributeValue: profile.CloneValue(attributeValue),
	}
}

// ItemQuantityChanged builds a record for a quantity change.
func ItemQuantityChanged(itemID string, quantity int) Record {
	return Record{Type: TypeItemQuantityChanged, ItemID: itemID, Quantity: quantity}
}

// StatModified builds a record for a stat write. The value is deep-copied so
// later writes to a shared map cannot rewrite history.
func StatModified(name string, value any) Record {
	return Record{Type: TypeStatModified, Name: name, Value: profile.CloneValue(value)}
}

// FullProfileUpdate builds a whole-document snapshot record.
func FullProfileUpdate(p *profile.Profile) Record {
	return Record{Type: TypeFullProfileUpdate, Profile: p.Clone()}
}

// MarshalJSON encodes the record as the protocol's discriminated object.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case TypeItemAdded:
		return json.Marshal(struct {
			ChangeType Type          `json:"changeType"`
			ItemID     string        `json:"itemId"`
			Item       *profile.Item `json:"item"`
		}{r.Type, r.ItemID, r.Item})
	case TypeItemRemoved:
		return json.Marshal(struct {
			ChangeType Type   `json:"changeType"`
			ItemID     string `json:"itemId"`
		}{r.Type, r.ItemID})
	case TypeItemAttrChanged:
		return json.Marshal(struct {
			ChangeType     Type   `json:"changeType"`
			ItemID         string `json:"itemId"`
			AttributeName  string `json:"attributeName"`
			AttributeValue any    `json:"attributeValue"`
		}{r.Type, r.ItemID, r.AttributeName, r.AttributeValue})
	case TypeItemQuantityChanged:
		return json.Marshal(struct {
			ChangeType Type   `json:"changeType"`
			ItemID     string `json:"itemId"`
			Quantity   int    `json:"quantity"`
		}{r.Type, r.ItemID, r.Quantity})
	case TypeStatModified:
		return json.Marshal(struct {
			ChangeType Type   `json:"changeType"`
			Name       string `json:"name"`
			Value      any    `json:"value"`
		}{r.Type, r.Name, r.Value})
	case TypeFullProfileUpdate:
		return json.Marshal(struct {
			ChangeType Type             `json:"changeType"`
			Profile    *profile.Profile `json:"profile"`
		}{r.Type, r.Profile})
	default:
		return json.Marshal(struct {
			ChangeType Type `json:"changeType"`
		}{r.Type})
	}
}

// Log is an append-only collector of change records for one profile.
type Log struct {
	records []Record
}

// Append adds records in production order.
func (l *Log) Append(records ...Record) {
	l.records = append(l.records, records...)
}

// Records returns the accumulated records in order.
func (l *Log) Records() []Record {
	return l.records
}

// Len returns the number of accumulated records.
func (l *Log) Len() int {
	return len(l.records)
}
