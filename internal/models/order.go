package models

type OrderStatus string

const (
	OrderInQueue   OrderStatus = "INQUEUE"
	OrderBeingMade OrderStatus = "BEINGMADE"
	OrderDone      OrderStatus = "DONE"
)

type OrderModel struct {
	Base
	UserID      string                   `json:"userId"                gorm:"column:userId;type:varchar(36);not null;index"`
	Status      OrderStatus              `json:"status"                gorm:"type:varchar(16);not null;default:INQUEUE;index"`
	Ingredients []IngredientOnOrderModel `json:"ingredients,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "Order" }

// IngredientOnOrderModel joins an order to an ingredient with a count.
type IngredientOnOrderModel struct {
	OrderID          string           `json:"-"                    gorm:"column:orderId;type:varchar(36);primaryKey"`
	IngredientID     string           `json:"-"                    gorm:"column:ingredientId;type:varchar(36);primaryKey;index"`
	IngredientNumber int              `json:"ingredientNumber"     gorm:"column:ingredientNumber;not null;default:1"`
	Ingredient       *IngredientModel `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID;constraint:OnDelete:RESTRICT"`
}

func (IngredientOnOrderModel) TableName() string { return "IngredientOnOrder" }
