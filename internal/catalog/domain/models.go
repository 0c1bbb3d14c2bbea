// Package domain holds the read-only food catalog served to API consumers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Description *string        `gorm:"column:description;type:text" json:"description"`
	IconURL     *string        `gorm:"column:icon_url;type:varchar(255)" json:"iconUrl"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Category) TableName() string { return "categories" }

type Food struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	Code        string         `gorm:"column:code;type:varchar(50);not null;uniqueIndex" json:"code"`
	Name        string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	CategoryID  int64          `gorm:"column:category_id;not null;index" json:"categoryId"`
	Category    *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Description *string        `gorm:"column:description;type:text" json:"description"`
	ServingSize *string        `gorm:"column:serving_size;type:varchar(50)" json:"servingSize"`
	ServingUnit *string        `gorm:"column:serving_unit;type:varchar(20)" json:"servingUnit"`
	Nutrients   *Nutrient      `gorm:"foreignKey:FoodID" json:"nutrients,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Food) TableName() string { return "foods" }

// Nutrient is the per-serving nutrient profile of exactly one food.
type Nutrient struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	FoodID         int64     `gorm:"column:food_id;not null;uniqueIndex" json:"foodId"`
	EnergyKcal     *float64  `gorm:"column:energy_kcal;type:numeric(10,2)" json:"energyKcal"`
	ProteinG       *float64  `gorm:"column:protein_g;type:numeric(10,2)" json:"proteinG"`
	FatG           *float64  `gorm:"column:fat_g;type:numeric(10,2)" json:"fatG"`
	CarbohydratesG *float64  `gorm:"column:carbohydrates_g;type:numeric(10,2)" json:"carbohydratesG"`
	FiberG         *float64  `gorm:"column:fiber_g;type:numeric(10,2)" json:"fiberG"`
	SugarG         *float64  `gorm:"column:sugar_g;type:numeric(10,2)" json:"sugarG"`
	CalciumMg      *float64  `gorm:"column:calcium_mg;type:numeric(10,2)" json:"calciumMg"`
	IronMg         *float64  `gorm:"column:iron_mg;type:numeric(10,2)" json:"ironMg"`
	VitaminAMcg    *float64  `gorm:"column:vitamin_a_mcg;type:numeric(10,2)" json:"vitaminAMcg"`
	VitaminCMg     *float64  `gorm:"column:vitamin_c_mg;type:numeric(10,2)" json:"vitaminCMg"`
	SodiumMg       *float64  `gorm:"column:sodium_mg;type:numeric(10,2)" json:"sodiumMg"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Nutrient) TableName() string { return "nutrients" }
