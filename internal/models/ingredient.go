package models

type IngredientType string

const (
	IngredientBread   IngredientType = "BREAD"
	IngredientCheese  IngredientType = "CHEESE"
	IngredientMeat    IngredientType = "MEAT"
	IngredientSalad   IngredientType = "SALAD"
	IngredientTomato  IngredientType = "TOMATO"
	IngredientOnion   IngredientType = "ONION"
	IngredientSauce   IngredientType = "SAUCE"
	IngredientSpecial IngredientType = "SPECIAL"
)

type IngredientModel struct {
	Base
	Name    string         `json:"name"    gorm:"not null"`
	Type    IngredientType `json:"type"    gorm:"type:varchar(16);not null"`
	Enabled bool           `json:"enabled" gorm:"not null;default:true;index"`
}

func (IngredientModel) TableName() string { return "Ingredient" }
