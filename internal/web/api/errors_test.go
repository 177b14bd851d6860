package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"automator/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	boom := errors.New("boom")
	cases := map[int]error{
		http.StatusNotFound:            models.NewNotFoundError("get rule", "1"),
		http.StatusBadRequest:          models.NewMalformedError("parse", boom),
		http.StatusForbidden:           models.NewPermissionError("ENABLE_DND", models.PermissionNotificationPolicy, "notification_policy_access_settings"),
		http.StatusServiceUnavailable:  models.NewTransientError("list rules", boom),
		http.StatusInternalServerError: boom,
	}
	for want, err := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		writeError(c, err)
		assert.Equal(t, want, rec.Code, err.Error())
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	writeError(c, models.NewPermissionError("ENABLE_DND", models.PermissionNotificationPolicy, "notification_policy_access_settings"))
	assert.Contains(t, rec.Body.String(), `"hint":"notification_policy_access_settings"`)
}
