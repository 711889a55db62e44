package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

// ContextViewSubjectKey is set by detail handlers to the subject being shown.
const ContextViewSubjectKey = "view_subject"

// ViewRecorder persists one view of a subject.
type ViewRecorder interface {
	RecordView(ctx context.Context, subject models.Subject) error
}

// ContentViewRecorder records a view after successful GET detail responses.
func ContentViewRecorder(rec ViewRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}
		v, ok := c.Get(ContextViewSubjectKey)
		if !ok {
			return
		}
		subject, ok := v.(models.Subject)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rec.RecordView(ctx, subject); err != nil {
			utils.Sugar.Debugf("view not recorded for %s: %v", subject, err)
		}
	}
}
