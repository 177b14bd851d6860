package models

import "automator/internal/models"

type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// RuleDetail is a rule with its triggers, conditions and actions
type RuleDetail struct {
	models.Rule
	Triggers   []models.Trigger   `json:"triggers"`
	Conditions []models.Condition `json:"conditions"`
	Actions    []models.Action    `json:"actions"`
}

type BlockListResponse struct {
	Packages []string `json:"packages"`
}
