// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("asset_type", validateAssetType)
		_ = v.RegisterValidation("transaction_side", validateTransactionSide)
		_ = v.RegisterValidation("scope_kind", validateScopeKind)
		_ = v.RegisterValidation("owner_role", validateOwnerRole)
		_ = v.RegisterValidation("plan_shortcut", validatePlanShortcut)
	}
}

func validateAssetType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "stock", "crypto":
		return true
	}
	return false
}

func validateTransactionSide(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "buy", "sell":
		return true
	}
	return false
}

func validateScopeKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "account", "portfolio", "combined", "group":
		return true
	}
	return false
}

func validateOwnerRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "master", "owner", "guest":
		return true
	}
	return false
}

func validatePlanShortcut(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "third_of_position", "half_of_position", "entire_position":
		return true
	}
	return false
}
