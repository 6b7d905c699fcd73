package pipeline

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/repository"
	"github.com/appforge/engine/pkg/logger"
)

// Pipeline phases. Phase 0 is reserved for pipeline-level fatal errors.
const (
	PhaseFatal        = 0
	PhaseRequirements = 1
	PhaseCodeGen      = 2
	PhaseRepository   = 3
	PhaseDeployment   = 4
	PhaseNotification = 5
)

var phaseNames = map[int]string{
	PhaseFatal:        "error",
	PhaseRequirements: "requirements",
	PhaseCodeGen:      "code_generation",
	PhaseRepository:   "github",
	PhaseDeployment:   "vercel",
	PhaseNotification: "notification",
}

// Recorder appends progress entries for one project and mirrors them to the
// application log. Pure write-behind: persistence failures are logged and
// swallowed so bookkeeping never kills a run.
type Recorder struct {
	logs      repository.DeploymentLogRepository
	projectID uuid.UUID
}

func NewRecorder(logs repository.DeploymentLogRepository, projectID uuid.UUID) *Recorder {
	return &Recorder{logs: logs, projectID: projectID}
}

func (r *Recorder) Info(ctx context.Context, phase int, message string) {
	r.record(ctx, phase, models.LogLevelInfo, message, nil)
}

func (r *Recorder) Success(ctx context.Context, phase int, message string) {
	r.record(ctx, phase, models.LogLevelSuccess, message, nil)
}

func (r *Recorder) Warning(ctx context.Context, phase int, message string, meta map[string]any) {
	r.record(ctx, phase, models.LogLevelWarning, message, meta)
}

func (r *Recorder) Error(ctx context.Context, phase int, message string, meta map[string]any) {
	r.record(ctx, phase, models.LogLevelError, message, meta)
}

func (r *Recorder) record(ctx context.Context, phase int, level, message string, meta map[string]any) {
	entry := &models.DeploymentLog{
		ProjectID:   r.projectID,
		Phase:       phaseNames[phase],
		PhaseNumber: phase,
		Message:     message,
		Level:       level,
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			entry.Metadata = datatypes.JSON(b)
		}
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		logger.L().Error("append pipeline log failed", zap.Error(err), zap.String("project_id", r.projectID.String()))
	}
	logger.L().Info("pipeline "+level,
		zap.String("project_id", r.projectID.String()),
		zap.String("phase", entry.Phase),
		zap.Int("phase_number", phase),
		zap.String("message", message),
	)
}
