package api

import (
	"context"
	"net/http"
	"strconv"

	"automator/internal/engine"
	"automator/internal/models"
	"automator/internal/web/middleware"
	webModels "automator/internal/web/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RuleEngine is the part of the engine the editor drives
type RuleEngine interface {
	Execute(ctx context.Context, req engine.Request) (models.ExecutionResult, error)
	DryRun(ctx context.Context, ruleID string) (engine.DryRunReport, error)
	RuleChanged(ctx context.Context, ruleID string) error
	RuleDisabled(ctx context.Context, ruleID string) error
	RuleDeleted(ctx context.Context, ruleID string) error
}

// RuleRepository is the rule store as seen by the API
type RuleRepository interface {
	ListRules(ctx context.Context) ([]models.Rule, error)
	GetRule(ctx context.Context, id string) (models.Rule, error)
	GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error)
	GetConditionsForRule(ctx context.Context, ruleID string) ([]models.Condition, error)
	GetActionsForRule(ctx context.Context, ruleID string) ([]models.Action, error)
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error
	DeleteRule(ctx context.Context, ruleID string) error
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case models.IsNotFound(err):
		return http.StatusNotFound
	case models.IsMalformed(err):
		return http.StatusBadRequest
	case models.IsPermissionDenied(err):
		return http.StatusForbidden
	case models.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if hint := models.Hint(err); hint != "" {
		body["hint"] = hint
	}
	c.JSON(statusFor(err), body)
}

func RegisterRuleRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, repo RuleRepository, eng RuleEngine, logger *zap.Logger) {
	rules := r.Group("/rules")
	rules.Use(middleware.RequireAuth())
	{
		rules.GET("", func(c *gin.Context) {
			list, err := repo.ListRules(c)
			if err != nil {
				writeError(c, err)
				return
			}
			if list == nil {
				list = []models.Rule{}
			}
			c.JSON(http.StatusOK, list)
		})

		rules.GET("/:id", func(c *gin.Context) {
			id := c.Param("id")
			rule, err := repo.GetRule(c, id)
			if err != nil {
				writeError(c, err)
				return
			}
			detail := webModels.RuleDetail{Rule: rule}
			if detail.Triggers, err = repo.GetTriggersForRule(c, id); err != nil {
				writeError(c, err)
				return
			}
			if detail.Conditions, err = repo.GetConditionsForRule(c, id); err != nil {
				writeError(c, err)
				return
			}
			if detail.Actions, err = repo.GetActionsForRule(c, id); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, detail)
		})

		rules.POST("/:id/enable", func(c *gin.Context) {
			id := c.Param("id")
			if err := repo.SetRuleEnabled(c, id, true); err != nil {
				writeError(c, err)
				return
			}
			if err := eng.RuleChanged(c, id); err != nil {
				logger.Warn("Registration after enable incomplete", zap.String("rule_id", id), zap.Error(err))
				c.JSON(http.StatusOK, gin.H{"status": "enabled", "warning": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "enabled"})
		})

		rules.POST("/:id/disable", func(c *gin.Context) {
			id := c.Param("id")
			// cancel before the flag flips so no alarm outlives the rule
			cancelErr := eng.RuleDisabled(c, id)
			if err := repo.SetRuleEnabled(c, id, false); err != nil {
				writeError(c, err)
				return
			}
			if cancelErr != nil {
				logger.Warn("Cancellation after disable incomplete", zap.String("rule_id", id), zap.Error(cancelErr))
				c.JSON(http.StatusOK, gin.H{"status": "disabled", "warning": cancelErr.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "disabled"})
		})

		rules.DELETE("/:id", func(c *gin.Context) {
			id := c.Param("id")
			cancelErr := eng.RuleDeleted(c, id)
			if err := repo.DeleteRule(c, id); err != nil {
				writeError(c, err)
				return
			}
			if cancelErr != nil {
				logger.Warn("Cancellation after delete incomplete", zap.String("rule_id", id), zap.Error(cancelErr))
			}
			c.JSON(http.StatusOK, gin.H{"status": "Rule deleted successfully"})
		})

		rules.POST("/:id/refresh", func(c *gin.Context) {
			if err := eng.RuleChanged(c, c.Param("id")); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
		})

		rules.POST("/:id/run", func(c *gin.Context) {
			force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
			res, err := eng.Execute(c, engine.Request{
				RuleID:         c.Param("id"),
				TriggeredBy:    "manual",
				SkipConditions: force,
			})
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, res)
		})

		rules.GET("/:id/check", func(c *gin.Context) {
			rep, err := eng.DryRun(c, c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, rep)
		})
	}
}
