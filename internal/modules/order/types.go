package order

import "errors"

var (
	ErrNotFound          = errors.New("order does not exist")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrNotCancellable    = errors.New("order is already being made")
	ErrUnknownIngredient = errors.New("ingredient does not exist or is disabled")
)

type CreateDTO struct {
	Ingredients []string `json:"ingredients" binding:"required,min=1,dive,uuid"`
}

type ModifyDTO struct {
	Ingredients []string `json:"ingredients" binding:"omitempty,dive,uuid"`
	Status      *string  `json:"status"      binding:"omitempty,oneof=INQUEUE BEINGMADE DONE"`
}

type ListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=INQUEUE BEINGMADE DONE"`
	UID    string `form:"uid"    binding:"omitempty,uuid"`
}

// line is one ingredient of an order with how often it was picked.
type line struct {
	id     string
	amount int
}

// tally collapses repeated ids into counted lines, keeping first-seen order.
func tally(ids []string) []line {
	index := make(map[string]int, len(ids))
	lines := make([]line, 0, len(ids))
	for _, id := range ids {
		if i, ok := index[id]; ok {
			lines[i].amount++
			continue
		}
		index[id] = len(lines)
		lines = append(lines, line{id: id, amount: 1})
	}
	return lines
}
